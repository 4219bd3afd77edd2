// Package player is the playback state machine.
//
// All state lives in a single [State] value changed only by applying an [Action]
// through [Reduce]. A [Player] serializes every action behind one mutex, drives a
// [media.Element] and drops asynchronous results that belong to a track the user
// has already moved away from.
package player
