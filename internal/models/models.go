package models

import (
	"fmt"
	"strings"
	"time"
)

// Track represents a playable song from the catalog.
type Track struct {
	Hash      string `json:"hash"`                // content hash, unique id
	Title     string `json:"title"`               // song name without artist prefix
	Artist    string `json:"artist"`              // singer name(s)
	Album     string `json:"album,omitempty"`     // album name
	AlbumID   string `json:"album_id,omitempty"`  // album id, used to look up cover art
	Duration  int    `json:"duration,omitempty"`  // duration in seconds
	Thumbnail string `json:"thumbnail,omitempty"` // cover art URL
	URL       string `json:"url,omitempty"`       // playable URL, resolved lazily
}

// Label returns "Artist - Title" for display.
func (t Track) Label() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// Validate checks the fields every consumer relies on.
func (t Track) Validate() error {
	if strings.TrimSpace(t.Hash) == "" {
		return fmt.Errorf("track hash is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track title is required")
	}
	return nil
}

// SearchPage is one page of song search results.
type SearchPage struct {
	Keyword  string  `json:"keyword"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
	Tracks   []Track `json:"tracks"`
}

// HasMore reports whether another page exists after this one.
func (p *SearchPage) HasMore() bool {
	if p.Total > 0 {
		return p.Page*p.PageSize < p.Total
	}
	return len(p.Tracks) >= p.PageSize && p.PageSize > 0
}

// Session holds the credentials returned by a successful cellphone login.
type Session struct {
	Token    string    `json:"token"`
	VIPToken string    `json:"vip_token,omitempty"`
	UserID   string    `json:"userid"`
	VIPType  string    `json:"vip_type,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// Valid reports whether the session carries a usable token.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.UserID != ""
}

// DownloadRecord is a completed download persisted in the history table.
type DownloadRecord struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album,omitempty"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the record before it is written.
func (r *DownloadRecord) Validate() error {
	if r.Hash == "" {
		return fmt.Errorf("download hash is required")
	}
	if r.Path == "" {
		return fmt.Errorf("download path is required")
	}
	return nil
}
