// Package models defines the domain entities shared across mdx.
//
//   - [Track] : a catalog song identified by its content hash
//   - [SearchPage] : one page of search results
//   - [Session] : the persisted login returned by the catalog API
//   - [DownloadRecord] : a completed download kept in the history table
//
// Tracks are read-only values owned by the catalog; the player and the download manager
// pass them around by value.
package models
