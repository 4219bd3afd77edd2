// HTTP transport for the catalog API
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:3000"
	defaultQuality = "320"
	defaultTimeout = 30 * time.Second
)

// cookieExtras are the token extras forwarded as cookies next to the access token.
var cookieExtras = []string{"userid", "vip_token", "vip_type"}

// APIService issues requests against the catalog API.
type APIService struct {
	baseURL    string
	quality    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     oauth2.TokenSource
	logger     *log.Logger
}

// APIOpts configures an [APIService].
type APIOpts struct {
	BaseURL           string
	Quality           string
	Timeout           time.Duration
	RequestsPerSecond float64            // 0 disables rate limiting
	HTTPClient        *http.Client       // defaults to [http.DefaultClient]
	Tokens            oauth2.TokenSource // login session; nil means anonymous requests
	Logger            *log.Logger
}

// NewAPIService creates a new API service instance for the catalog API.
func NewAPIService(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Quality == "" {
		opts.Quality = defaultQuality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &APIService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		quality:    opts.Quality,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
		tokens:     opts.Tokens,
		logger:     opts.Logger,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// apiError is the error body shape returned by the catalog API.
type apiError struct {
	Status    *int    `json:"status"`
	ErrorCode flexInt `json:"error_code"`
	ErrorMsg  string  `json:"error_msg"`
	Msg       string  `json:"msg"`
}

func (e apiError) message() string {
	if e.ErrorMsg != "" {
		return e.ErrorMsg
	}
	return e.Msg
}

// Get performs a GET request to the specified path and returns the raw response.
//
// Non-2xx statuses are returned as-is; only transport failures produce an error.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	resp, body, err := a.do(ctx, a.baseURL+path)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Request performs a GET against path with query and decodes the JSON body into out (when non-nil).
//
// Non-2xx responses and bodies flagged with a non-zero error code become [shared.ErrAPIRequest].
func (a *APIService) Request(ctx context.Context, path string, query url.Values, out any) error {
	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	resp, body, err := a.do(ctx, fullURL)
	if err != nil {
		return err
	}

	var envelope apiError
	_ = json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := envelope.message(); msg != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if envelope.Status != nil && *envelope.Status == 0 && envelope.ErrorCode != 0 {
		msg := envelope.message()
		if msg == "" {
			msg = "request rejected"
		}
		return fmt.Errorf("%w: error code %d: %s", shared.ErrAPIRequest, int(envelope.ErrorCode), msg)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}

	return nil
}

// do runs a rate-limited, time-boxed GET and reads the whole body.
func (a *APIService) do(ctx context.Context, fullURL string) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: rate limiter: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if cookie := a.cookie(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	a.logger.Debug("catalog request", "url", fullURL)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	return resp, body, nil
}

// cookie renders the session token source as a Cookie header value.
func (a *APIService) cookie() string {
	if a.tokens == nil {
		return ""
	}

	tok, err := a.tokens.Token()
	if err != nil || !tok.Valid() {
		return ""
	}

	parts := []string{"token=" + tok.AccessToken}
	for _, key := range cookieExtras {
		if v, ok := tok.Extra(key).(string); ok && v != "" {
			parts = append(parts, key+"="+v)
		}
	}

	return strings.Join(parts, "; ")
}
