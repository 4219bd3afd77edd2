// Package ui implements the interactive terminal client using bubbletea's Elm architecture.
//
// The [Model] has two focus areas:
//  1. the search input, where enter runs a keyword search
//  2. the results list, where tracks are played, queued and downloaded
//
// The next page of results is requested when the cursor reaches the last loaded item.
// A tick message refreshes the player bar and download progress bars, which read
// [player.State] and [downloads.Tracker] entries directly.
package ui
