package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("session token expired")

	// API and transport errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrNoPlayableURL      = fmt.Errorf("no playable URL")

	// Playback errors
	ErrPlaybackFailed = fmt.Errorf("playback failed")
	ErrMediaLoad      = fmt.Errorf("media failed to load")
	ErrMediaClosed    = fmt.Errorf("media element closed")

	// Download errors
	ErrDownloadFailed     = fmt.Errorf("download failed")
	ErrAlreadyDownloading = fmt.Errorf("already downloading")
	ErrUnsupportedFormat  = fmt.Errorf("unsupported audio format")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
