// Package media plays audio URLs through an external player process.
//
// An [Element] is the headless equivalent of an HTML audio element: it loads one
// source at a time, accepts transport commands and reports what happens as [Event]s.
package media

import "fmt"

// EventKind identifies what an [Event] reports.
type EventKind int

const (
	MetadataReady EventKind = iota + 1 // duration of the loaded source is known
	TimeUpdate                         // playback position moved
	Ended                              // source played to the end
	Failed                             // source could not be loaded or decoded
)

func (k EventKind) String() string {
	switch k {
	case MetadataReady:
		return "metadata-ready"
	case TimeUpdate:
		return "time-update"
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by an [Element].
//
// Load is the number of [Element.Load] calls the element had started when the source
// this event describes began playing. Consumers compare it with their own count to
// drop events left over from a previous source.
type Event struct {
	Kind  EventKind
	Load  int
	Value float64 // seconds: duration for MetadataReady, position for TimeUpdate
	Err   error   // set for Failed
}

// Element plays one audio source at a time.
//
// Commands are applied in call order. Events arrive on a single channel that is closed
// once the element is closed.
type Element interface {
	// Load replaces the current source with url, paused at the start.
	Load(url string) error
	Play() error
	Pause() error
	// Seek moves to an absolute position in seconds.
	Seek(seconds float64) error
	// SetVolume takes a level between 0 and 1.
	SetVolume(level float64) error
	SetSpeed(rate float64) error
	// Stop unloads the current source.
	Stop() error
	Events() <-chan Event
	Close() error
}
