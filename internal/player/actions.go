package player

import "github.com/desertthunder/mdx/internal/models"

// Action is a state transition applied by [Reduce]. Only this package defines actions.
type Action interface {
	action()
}

// TrackSelected makes Track current and resets per-track state.
type TrackSelected struct{ Track models.Track }

// TrackResolved attaches the playable URL and cover art to the current track.
type TrackResolved struct{ URL, Cover string }

// MetadataLoaded records the duration and ends loading.
type MetadataLoaded struct{ Duration float64 }

// Played marks playback as running.
type Played struct{}

// Paused marks playback as stopped.
type Paused struct{}

// Seeked moves the position, bounded by the duration when it is known.
type Seeked struct{ Position float64 }

// VolumeChanged sets the volume, clamped to [0, 1].
type VolumeChanged struct{ Level float64 }

// RateChanged sets the playback rate, clamped to [0.5, 2].
type RateChanged struct{ Rate float64 }

// TimeUpdated reports the media position. Ignored unless playing.
type TimeUpdated struct{ Position float64 }

// Finished marks the current track as played to its end.
type Finished struct{}

// Cleared returns the player to idle, keeping volume, rate and queue.
type Cleared struct{}

// Failed records an error and stops playback.
type Failed struct{ Message string }

// QueueChanged replaces the queue and the current position in it.
type QueueChanged struct {
	Tracks []models.Track
	Index  int
}

func (TrackSelected) action()  {}
func (TrackResolved) action()  {}
func (MetadataLoaded) action() {}
func (Played) action()         {}
func (Paused) action()         {}
func (Seeked) action()         {}
func (VolumeChanged) action()  {}
func (RateChanged) action()    {}
func (TimeUpdated) action()    {}
func (Finished) action()       {}
func (Cleared) action()        {}
func (Failed) action()         {}
func (QueueChanged) action()   {}

// Reduce returns s with a applied. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case TrackSelected:
		track := a.Track
		s.Track = &track
		s.IsPlaying = false
		s.CurrentTime = 0
		s.Duration = 0
		s.IsLoading = true
		s.Error = ""
	case TrackResolved:
		if s.Track == nil {
			break
		}
		track := *s.Track
		track.URL = a.URL
		if a.Cover != "" {
			track.Thumbnail = a.Cover
		}
		s.Track = &track
	case MetadataLoaded:
		s.Duration = clampPosition(a.Duration, 0)
		s.IsLoading = false
	case Played:
		s.IsPlaying = true
	case Paused:
		s.IsPlaying = false
	case Seeked:
		s.CurrentTime = clampPosition(a.Position, s.Duration)
	case VolumeChanged:
		s.Volume = clamp(a.Level, 0, 1)
	case RateChanged:
		s.PlaybackRate = clamp(a.Rate, MinRate, MaxRate)
	case TimeUpdated:
		if s.IsPlaying {
			s.CurrentTime = clampPosition(a.Position, s.Duration)
		}
	case Finished:
		s.IsPlaying = false
		if s.Duration > 0 {
			s.CurrentTime = s.Duration
		}
	case Cleared:
		s.Track = nil
		s.IsPlaying = false
		s.IsLoading = false
		s.CurrentTime = 0
		s.Duration = 0
		s.Error = ""
	case Failed:
		s.Error = a.Message
		s.IsPlaying = false
		s.IsLoading = false
	case QueueChanged:
		s.Queue = append([]models.Track(nil), a.Tracks...)
		s.QueueIndex = a.Index
		if a.Index < 0 || a.Index >= len(s.Queue) {
			s.QueueIndex = -1
		}
	}
	return s
}
