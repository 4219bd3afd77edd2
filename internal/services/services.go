package services

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/mdx/internal/models"
)

// Catalog is the subset of the catalog API used by playback, downloads and the TUI.
type Catalog interface {
	// Search returns one page of songs matching keyword.
	Search(ctx context.Context, keyword string, page, pageSize int) (*models.SearchPage, error)

	// GetSongURL resolves the playable URLs for a content hash.
	GetSongURL(ctx context.Context, hash string) (*SongURL, error)

	// GetAlbumImages fetches artwork candidates for a track.
	GetAlbumImages(ctx context.Context, hash, albumID string) (*AlbumImages, error)

	// DownloadBinary streams url into w, reporting byte progress.
	DownloadBinary(ctx context.Context, url string, w io.Writer, onProgress ProgressFunc) (int64, error)
}

// ProgressFunc receives the bytes loaded so far and the total (0 when unknown).
type ProgressFunc func(loaded, total int64)

// SongURL is the response of the song URL endpoint.
type SongURL struct {
	Hash      string   `json:"hash"`
	URL       []string `json:"url"`
	BackupURL []string `json:"backupUrl"`
	ExtName   string   `json:"extName"`
	FileSize  int64    `json:"fileSize"`
}

// Best returns the first backup URL, falling back to the primary URL list.
func (s *SongURL) Best() string {
	for _, list := range [][]string{s.BackupURL, s.URL} {
		for _, u := range list {
			if u = strings.TrimSpace(u); u != "" {
				return u
			}
		}
	}
	return ""
}

// flexString decodes JSON strings and numbers alike; the catalog is inconsistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt decodes JSON numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
