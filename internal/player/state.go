package player

import (
	"math"

	"github.com/desertthunder/mdx/internal/models"
)

const (
	DefaultVolume = 0.7
	DefaultRate   = 1.0
	MinRate       = 0.5
	MaxRate       = 2.0
)

// State is a snapshot of the player.
type State struct {
	Track        *models.Track // nil when idle
	IsPlaying    bool
	CurrentTime  float64 // seconds
	Duration     float64 // seconds, 0 until known
	Volume       float64 // 0-1
	PlaybackRate float64 // 0.5-2
	IsLoading    bool
	Error        string // empty when there is no error
	Queue        []models.Track
	QueueIndex   int // position of Track in Queue, -1 when not playing from the queue
}

// DefaultState is the idle player.
func DefaultState() State {
	return State{Volume: DefaultVolume, PlaybackRate: DefaultRate, QueueIndex: -1}
}

// Idle reports whether no track is selected.
func (s State) Idle() bool {
	return s.Track == nil
}

// HasNext reports whether the queue continues after the current track.
func (s State) HasNext() bool {
	return s.QueueIndex >= 0 && s.QueueIndex+1 < len(s.Queue)
}

// HasPrev reports whether the queue has a track before the current one.
func (s State) HasPrev() bool {
	return s.QueueIndex > 0 && s.QueueIndex < len(s.Queue)
}

// clamp bounds v to [lo, hi]; NaN becomes lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// clampPosition bounds a seek target to the track, or to >= 0 while the duration is unknown.
func clampPosition(t, duration float64) float64 {
	if duration > 0 {
		return clamp(t, 0, duration)
	}
	return clamp(t, 0, math.Inf(1))
}
