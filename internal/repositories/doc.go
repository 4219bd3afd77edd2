// Package repositories implements SQLite persistence for mdx.
//
// Key Implementations:
//   - [TrackRepository] : tracks remembered from search results, keyed by content hash
//   - [DownloadRepository] : history of completed downloads
//
// Schemas live in the embedded migrations of package shared.
package repositories
