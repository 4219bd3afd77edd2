// Package downloads saves catalog tracks to disk and tracks their progress.
//
// The [Tracker] turns raw byte counts reported while streaming into percent, speed
// and ETA per content hash. The [Manager] runs one download end to end: it resolves
// the URL, streams into a temporary file, tags the result and records it in history.
package downloads
