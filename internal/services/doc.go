// Package services implements the transport to the catalog API.
//
// # Transport
//
// [APIService] issues every HTTP request: it prefixes the configured base URL, waits on a
// [rate.Limiter], attaches the login cookie obtained from an injected [oauth2.TokenSource]
// and normalizes error bodies into [shared.ErrAPIRequest].
//
// # Catalog Operations
//
// [Catalog] is the narrow interface the player, download manager and TUI consume:
//   - [APIService.Search] : song search, one page at a time
//   - [APIService.GetSongURL] : playable/downloadable URLs for a content hash
//   - [APIService.GetAlbumImages] : album and artist artwork, see [AlbumImages.CoverURL]
//   - [APIService.DownloadBinary] : streamed binary fetch with byte progress callbacks
//
// # Authentication Endpoints
//
// [APIService.SendCaptcha], [APIService.LoginCellphone] and [APIService.VerifyToken] back the
// phone + SMS code login in package auth.
//
// No request is retried; callers surface the error to the user.
package services
