package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
)

var _ Catalog = (*APIService)(nil)

// catalogSong is a single entry of the search endpoint's "lists" array.
type catalogSong struct {
	FileHash    string     `json:"FileHash"`
	FileName    string     `json:"FileName"`
	SongName    string     `json:"SongName"`
	OriSongName string     `json:"OriSongName"`
	SingerName  string     `json:"SingerName"`
	AlbumName   string     `json:"AlbumName"`
	AlbumID     flexString `json:"AlbumID"`
	Duration    flexInt    `json:"Duration"`
	Image       string     `json:"Image"`
}

type searchResponse struct {
	Data struct {
		Lists    []catalogSong `json:"lists"`
		Total    flexInt       `json:"total"`
		Page     flexInt       `json:"page"`
		PageSize flexInt       `json:"pagesize"`
	} `json:"data"`
}

// toTrack maps a catalog entry onto [models.Track], preferring the original song name.
func (s catalogSong) toTrack() models.Track {
	title := s.OriSongName
	if title == "" {
		title = s.SongName
	}
	if title == "" {
		title = s.FileName
	}

	return models.Track{
		Hash:      s.FileHash,
		Title:     title,
		Artist:    s.SingerName,
		Album:     s.AlbumName,
		AlbumID:   string(s.AlbumID),
		Duration:  int(s.Duration),
		Thumbnail: sizedImage(s.Image, coverSize),
	}
}

// Search returns one page of songs matching keyword.
//
// Calls GET /search?type=song on the catalog API.
func (a *APIService) Search(ctx context.Context, keyword string, page, pageSize int) (*models.SearchPage, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty search keyword", shared.ErrInvalidInput)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 15
	}

	query := url.Values{}
	query.Set("type", "song")
	query.Set("keywords", keyword)
	query.Set("page", strconv.Itoa(page))
	query.Set("pagesize", strconv.Itoa(pageSize))

	var resp searchResponse
	if err := a.Request(ctx, "/search", query, &resp); err != nil {
		return nil, err
	}

	result := &models.SearchPage{
		Keyword:  keyword,
		Page:     page,
		PageSize: pageSize,
		Total:    int(resp.Data.Total),
		Tracks:   make([]models.Track, 0, len(resp.Data.Lists)),
	}

	for _, song := range resp.Data.Lists {
		if song.FileHash == "" {
			continue
		}
		result.Tracks = append(result.Tracks, song.toTrack())
	}

	return result, nil
}

// GetSongURL resolves the playable URLs for a content hash.
//
// Calls GET /song/url with the configured quality.
func (a *APIService) GetSongURL(ctx context.Context, hash string) (*SongURL, error) {
	if hash == "" {
		return nil, fmt.Errorf("%w: empty hash", shared.ErrInvalidInput)
	}

	query := url.Values{}
	query.Set("hash", hash)
	query.Set("quality", a.quality)

	var resp SongURL
	if err := a.Request(ctx, "/song/url", query, &resp); err != nil {
		return nil, err
	}

	if resp.Best() == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoPlayableURL, hash)
	}

	return &resp, nil
}

// GetAlbumImages fetches artwork candidates for a track.
//
// Calls GET /images on the catalog API.
func (a *APIService) GetAlbumImages(ctx context.Context, hash, albumID string) (*AlbumImages, error) {
	query := url.Values{}
	query.Set("hash", hash)
	query.Set("album_id", albumID)

	var resp AlbumImages
	if err := a.Request(ctx, "/images", query, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// SendCaptcha asks the catalog to text a login code to mobile.
func (a *APIService) SendCaptcha(ctx context.Context, mobile string) error {
	if strings.TrimSpace(mobile) == "" {
		return fmt.Errorf("%w: mobile number is required", shared.ErrMissingArgument)
	}

	query := url.Values{}
	query.Set("mobile", mobile)
	return a.Request(ctx, "/captcha/sent", query, nil)
}

type loginResponse struct {
	Data struct {
		Token    string     `json:"token"`
		VIPToken string     `json:"vip_token"`
		UserID   flexString `json:"userid"`
		VIPType  flexString `json:"vip_type"`
	} `json:"data"`
}

// LoginCellphone exchanges a mobile number and SMS code for a session.
func (a *APIService) LoginCellphone(ctx context.Context, mobile, code string) (*models.Session, error) {
	if strings.TrimSpace(mobile) == "" || strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: mobile number and code are required", shared.ErrMissingArgument)
	}

	query := url.Values{}
	query.Set("mobile", mobile)
	query.Set("code", code)

	var resp loginResponse
	if err := a.Request(ctx, "/login/cellphone", query, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	session := &models.Session{
		Token:    resp.Data.Token,
		VIPToken: resp.Data.VIPToken,
		UserID:   string(resp.Data.UserID),
		VIPType:  string(resp.Data.VIPType),
		SavedAt:  time.Now(),
	}
	if !session.Valid() {
		return nil, fmt.Errorf("%w: login response carried no token", shared.ErrAuthFailed)
	}

	return session, nil
}

// VerifyToken checks that a stored token is still accepted by the catalog.
func (a *APIService) VerifyToken(ctx context.Context, token, userID string) error {
	query := url.Values{}
	query.Set("token", token)
	query.Set("userid", userID)

	if err := a.Request(ctx, "/login/token", query, nil); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}
	return nil
}
