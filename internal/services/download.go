package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/mdx/internal/shared"
)

// progressWriter counts bytes written through it and reports after every write.
type progressWriter struct {
	w          io.Writer
	loaded     int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.loaded += int64(n)
	if p.onProgress != nil && n > 0 {
		p.onProgress(p.loaded, p.total)
	}
	return n, err
}

// DownloadBinary streams url into w, calling onProgress with (loaded, total) as bytes arrive.
//
// total is the response Content-Length, or 0 when the server does not send one. The request is
// bounded only by ctx: unlike catalog calls it carries no per-request timeout, and no cookie.
func (a *APIService) DownloadBinary(ctx context.Context, url string, w io.Writer, onProgress ProgressFunc) (int64, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: rate limiter: %v", shared.ErrDownloadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %v", shared.ErrDownloadFailed, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: request failed: %v", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: status %d", shared.ErrDownloadFailed, resp.StatusCode)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	pw := &progressWriter{w: w, total: total, onProgress: onProgress}
	if onProgress != nil {
		onProgress(0, total)
	}

	a.logger.Debug("downloading", "url", url, "total", total)

	n, err := io.Copy(pw, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	return n, nil
}
