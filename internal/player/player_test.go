package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mdx/internal/media"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/services"
	"github.com/desertthunder/mdx/internal/shared"
	tu "github.com/desertthunder/mdx/internal/testing"
)

// fakeResolver serves URLs from memory. Hashes with a gate block until the gate is closed.
type fakeResolver struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	fail  map[string]error
	cover string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{gates: map[string]chan struct{}{}, fail: map[string]error{}}
}

func (r *fakeResolver) gate(hash string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.gates[hash] = ch
	return ch
}

func (r *fakeResolver) GetSongURL(ctx context.Context, hash string) (*services.SongURL, error) {
	r.mu.Lock()
	gate, err := r.gates[hash], r.fail[hash]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &services.SongURL{Hash: hash, BackupURL: []string{"http://cdn/" + hash + ".mp3"}}, nil
}

func (r *fakeResolver) GetAlbumImages(ctx context.Context, hash, albumID string) (*services.AlbumImages, error) {
	if r.cover == "" {
		return nil, errors.New("no images")
	}
	return &services.AlbumImages{Data: []services.ImageSet{{Album: []services.AlbumArt{{SizableCover: r.cover}}}}}, nil
}

func track(hash string) models.Track {
	return models.Track{Hash: hash, Title: "Song " + hash, Artist: "Artist"}
}

func newTestPlayer(t *testing.T) (*Player, *tu.FakeElement, *fakeResolver) {
	t.Helper()
	el := tu.NewFakeElement()
	resolver := newFakeResolver()
	p := New(Opts{Resolver: resolver, Media: el, EndGrace: 50 * time.Millisecond})
	t.Cleanup(func() { p.Close() })
	return p, el, resolver
}

func waitState(t *testing.T, p *Player, desc string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := p.State(); cond(s) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state: %+v", desc, p.State())
	return State{}
}

// startTrack selects tr and waits until it is playing as load number n.
func startTrack(t *testing.T, p *Player, el *tu.FakeElement, tr models.Track, n int) {
	t.Helper()
	p.SelectTrack(tr)
	waitLoads(t, el, n)
	el.Emit(n, media.MetadataReady, 200, nil)
	waitState(t, p, "playing", func(s State) bool { return s.IsPlaying })
}

func waitLoads(t *testing.T, el *tu.FakeElement, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for el.Loads() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d loads, got %d", n, el.Loads())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPlayer(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		p, _, _ := newTestPlayer(t)
		s := p.State()

		if !s.Idle() || s.IsPlaying || s.IsLoading {
			t.Errorf("expected idle player, got %+v", s)
		}
		if s.Volume != 0.7 || s.PlaybackRate != 1 || s.QueueIndex != -1 {
			t.Errorf("unexpected defaults: %+v", s)
		}
	})

	t.Run("SelectTrack", func(t *testing.T) {
		t.Run("Loads And Autoplays", func(t *testing.T) {
			p, el, resolver := newTestPlayer(t)
			resolver.cover = "http://img/{size}/c.jpg"

			p.SelectTrack(track("A"))
			s := p.State()
			if s.Track == nil || s.Track.Hash != "A" || !s.IsLoading || s.CurrentTime != 0 {
				t.Errorf("expected loading track A, got %+v", s)
			}

			waitLoads(t, el, 1)
			if urls := el.URLs(); urls[0] != "http://cdn/A.mp3" {
				t.Errorf("expected backup URL loaded, got %v", urls)
			}

			el.Emit(1, media.MetadataReady, 215.5, nil)
			s = waitState(t, p, "playing", func(s State) bool { return s.IsPlaying })

			if s.IsLoading || s.Duration != 215.5 {
				t.Errorf("expected metadata applied, got %+v", s)
			}
			if s.Track.URL != "http://cdn/A.mp3" || s.Track.Thumbnail != "http://img/200/c.jpg" {
				t.Errorf("expected resolved url and cover, got %+v", s.Track)
			}
		})

		t.Run("Resets Error And Time", func(t *testing.T) {
			p, el, resolver := newTestPlayer(t)
			resolver.fail["bad"] = errors.New("boom")

			p.SelectTrack(track("bad"))
			waitState(t, p, "error", func(s State) bool { return s.Error != "" })

			startTrack(t, p, el, track("B"), 1)
			p.SeekTo(30)

			p.SelectTrack(track("C"))
			s := p.State()
			if s.Error != "" || s.CurrentTime != 0 || s.Duration != 0 {
				t.Errorf("expected per-track state reset, got %+v", s)
			}
		})

		t.Run("Later Selection Wins", func(t *testing.T) {
			p, el, resolver := newTestPlayer(t)
			gateA := resolver.gate("A")

			p.SelectTrack(track("A"))
			p.SelectTrack(track("B"))

			waitLoads(t, el, 1)
			close(gateA)
			time.Sleep(20 * time.Millisecond)

			el.Emit(1, media.MetadataReady, 100, nil)
			s := waitState(t, p, "B playing", func(s State) bool { return s.IsPlaying })

			if s.Track.Hash != "B" {
				t.Errorf("expected current track B, got %s", s.Track.Hash)
			}
			if urls := el.URLs(); len(urls) != 1 || urls[0] != "http://cdn/B.mp3" {
				t.Errorf("expected only B to be loaded, got %v", urls)
			}
		})

		t.Run("Stale Media Events Ignored", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)

			p.SelectTrack(track("A"))
			waitLoads(t, el, 1)
			p.SelectTrack(track("B"))
			waitLoads(t, el, 2)

			el.Emit(1, media.MetadataReady, 100, nil)
			el.Emit(1, media.Failed, 0, errors.New("old source broke"))
			el.Emit(2, media.MetadataReady, 250, nil)

			s := waitState(t, p, "B ready", func(s State) bool { return !s.IsLoading })
			if s.Track.Hash != "B" || s.Duration != 250 || s.Error != "" {
				t.Errorf("expected only B's events applied, got %+v", s)
			}
		})

		t.Run("Resolution Failure", func(t *testing.T) {
			p, _, resolver := newTestPlayer(t)
			resolver.fail["A"] = shared.ErrNoPlayableURL

			p.SelectTrack(track("A"))
			s := waitState(t, p, "error", func(s State) bool { return s.Error != "" })

			if s.IsLoading || s.IsPlaying {
				t.Errorf("expected loading to stop, got %+v", s)
			}
			if !strings.Contains(s.Error, "no playable URL") {
				t.Errorf("expected resolution error in state, got %q", s.Error)
			}
		})

		t.Run("Load Failure", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			el.LoadErr = errors.New("unsupported scheme")

			p.SelectTrack(track("A"))
			s := waitState(t, p, "error", func(s State) bool { return s.Error != "" })
			if !strings.Contains(s.Error, "media failed to load") {
				t.Errorf("unexpected error %q", s.Error)
			}
		})
	})

	t.Run("Playback", func(t *testing.T) {
		t.Run("Autoplay Failure Sets Error", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			el.SetPlayErr(errors.New("device busy"))

			p.SelectTrack(track("A"))
			waitLoads(t, el, 1)
			el.Emit(1, media.MetadataReady, 100, nil)

			s := waitState(t, p, "error", func(s State) bool { return s.Error != "" })
			if s.IsPlaying {
				t.Error("expected playback not to start")
			}
			if !strings.Contains(s.Error, "playback failed") {
				t.Errorf("expected playback error, got %q", s.Error)
			}
		})

		t.Run("TogglePlay", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)

			p.TogglePlay()
			if s := p.State(); s.IsPlaying || len(el.Calls()) != 0 {
				t.Errorf("expected toggle without track to do nothing, got %+v", s)
			}

			startTrack(t, p, el, track("A"), 1)

			p.TogglePlay()
			if p.State().IsPlaying {
				t.Error("expected toggle to pause")
			}
			p.TogglePlay()
			if !p.State().IsPlaying {
				t.Error("expected toggle to resume")
			}

			el.SetPlayErr(errors.New("lost device"))
			p.Pause()
			p.TogglePlay()
			if s := p.State(); s.IsPlaying || s.Error == "" {
				t.Errorf("expected failed resume to set error, got %+v", s)
			}
		})

		t.Run("Play While Loading Waits For Metadata", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)

			p.SelectTrack(track("A"))
			p.Play()

			for _, call := range el.Calls() {
				if call == "play" {
					t.Error("expected no play command before metadata")
				}
			}
		})

		t.Run("Pause Is Idempotent", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			startTrack(t, p, el, track("A"), 1)

			p.Pause()
			p.Pause()
			if p.State().IsPlaying {
				t.Error("expected paused")
			}
		})
	})

	t.Run("SeekTo", func(t *testing.T) {
		p, el, _ := newTestPlayer(t)

		p.SeekTo(-4)
		if got := p.State().CurrentTime; got != 0 {
			t.Errorf("expected negative seek clamped to 0 without track, got %v", got)
		}

		startTrack(t, p, el, track("A"), 1)

		p.SeekTo(42)
		if got := p.State().CurrentTime; got != 42 {
			t.Errorf("expected 42, got %v", got)
		}
		p.SeekTo(1000)
		if got := p.State().CurrentTime; got != 200 {
			t.Errorf("expected seek clamped to duration 200, got %v", got)
		}

		p.SeekTo(10)
		p.SeekBy(5)
		if got := p.State().CurrentTime; got != 15 {
			t.Errorf("expected relative seek to 15, got %v", got)
		}

		calls := el.Calls()
		if calls[len(calls)-1] != "seek 15.00" {
			t.Errorf("expected media seek, got %v", calls[len(calls)-1])
		}
	})

	t.Run("SetVolume", func(t *testing.T) {
		p, el, _ := newTestPlayer(t)

		tests := []struct{ in, want float64 }{{-1, 0}, {2, 1}, {0.25, 0.25}}
		for _, tt := range tests {
			p.SetVolume(tt.in)
			if got := p.State().Volume; got != tt.want {
				t.Errorf("SetVolume(%v) stored %v, want %v", tt.in, got, tt.want)
			}
			if got := el.Volume(); got != tt.want {
				t.Errorf("SetVolume(%v) applied %v to media, want %v", tt.in, got, tt.want)
			}
		}
	})

	t.Run("SetPlaybackRate", func(t *testing.T) {
		p, el, _ := newTestPlayer(t)

		tests := []struct{ in, want float64 }{{10, 2}, {0.1, 0.5}, {1.25, 1.25}}
		for _, tt := range tests {
			p.SetPlaybackRate(tt.in)
			if got := p.State().PlaybackRate; got != tt.want {
				t.Errorf("SetPlaybackRate(%v) stored %v, want %v", tt.in, got, tt.want)
			}
			if got := el.Speed(); got != tt.want {
				t.Errorf("SetPlaybackRate(%v) applied %v to media, want %v", tt.in, got, tt.want)
			}
		}
	})

	t.Run("TimeUpdate", func(t *testing.T) {
		t.Run("Coalesces To Latest", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			startTrack(t, p, el, track("A"), 1)

			var changes int
			done := make(chan struct{})
			go func() {
				defer close(done)
				timeout := time.After(400 * time.Millisecond)
				for {
					select {
					case <-p.Changed():
						changes++
					case <-timeout:
						return
					}
				}
			}()

			for i := 1; i <= 20; i++ {
				el.Emit(1, media.TimeUpdate, float64(i)/10, nil)
			}

			waitState(t, p, "latest position", func(s State) bool { return s.CurrentTime == 2.0 })
			<-done
			if changes > 5 {
				t.Errorf("expected updates to be throttled, saw %d changes", changes)
			}
		})

		t.Run("Ignored While Paused", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			startTrack(t, p, el, track("A"), 1)
			p.Pause()

			el.Emit(1, media.TimeUpdate, 50, nil)
			time.Sleep(150 * time.Millisecond)
			if got := p.State().CurrentTime; got != 0 {
				t.Errorf("expected paused player to ignore time updates, got %v", got)
			}
		})
	})

	t.Run("Ended", func(t *testing.T) {
		t.Run("Clears Within Grace", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			startTrack(t, p, el, track("A"), 1)

			el.Emit(1, media.Ended, 0, nil)
			s := waitState(t, p, "finished", func(s State) bool { return !s.IsPlaying })
			if s.Track == nil {
				t.Fatal("expected finished track to stay visible during grace")
			}
			if s.CurrentTime != 200 {
				t.Errorf("expected position at end, got %v", s.CurrentTime)
			}

			start := time.Now()
			waitState(t, p, "idle", func(s State) bool { return s.Idle() })
			if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
				t.Errorf("expected idle within grace, took %v", elapsed)
			}
		})

		t.Run("Play During Grace Is Ignored", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			startTrack(t, p, el, track("A"), 1)

			el.Emit(1, media.Ended, 0, nil)
			waitState(t, p, "finished", func(s State) bool { return !s.IsPlaying })

			p.TogglePlay()
			if s := p.State(); s.IsPlaying {
				t.Errorf("expected finished track to stay paused, got %+v", s)
			}
			waitState(t, p, "idle", func(s State) bool { return s.Idle() && !s.IsPlaying })
		})

		t.Run("New Selection Cancels Clear", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)
			startTrack(t, p, el, track("A"), 1)

			el.Emit(1, media.Ended, 0, nil)
			waitState(t, p, "finished", func(s State) bool { return !s.IsPlaying })
			p.SelectTrack(track("B"))

			time.Sleep(120 * time.Millisecond)
			if s := p.State(); s.Track == nil || s.Track.Hash != "B" {
				t.Errorf("expected B to survive A's grace timer, got %+v", s.Track)
			}
		})

		t.Run("Advances Queue", func(t *testing.T) {
			p, el, _ := newTestPlayer(t)

			p.SetQueue([]models.Track{track("A"), track("B")}, 0)
			waitLoads(t, el, 1)
			el.Emit(1, media.MetadataReady, 100, nil)
			waitState(t, p, "A playing", func(s State) bool { return s.IsPlaying })

			el.Emit(1, media.Ended, 0, nil)
			waitLoads(t, el, 2)

			s := p.State()
			if s.Track.Hash != "B" || s.QueueIndex != 1 {
				t.Errorf("expected queue to advance to B, got %+v", s)
			}

			el.Emit(2, media.MetadataReady, 100, nil)
			waitState(t, p, "B playing", func(s State) bool { return s.IsPlaying })
		})
	})

	t.Run("Media Error", func(t *testing.T) {
		p, el, _ := newTestPlayer(t)
		startTrack(t, p, el, track("A"), 1)

		el.Emit(1, media.Failed, 0, errors.New("decoder error"))
		s := waitState(t, p, "error", func(s State) bool { return s.Error != "" })
		if s.IsPlaying {
			t.Error("expected playback to stop on media error")
		}

		p.TogglePlay()
		p.Play()
		if s := p.State(); s.IsPlaying || s.Error == "" {
			t.Errorf("expected failed track to stay stopped, got %+v", s)
		}
		plays := 0
		for _, call := range el.Calls() {
			if call == "play" {
				plays++
			}
		}
		if plays != 1 {
			t.Errorf("expected only the autoplay to reach media, got calls %v", el.Calls())
		}

		startTrack(t, p, el, track("B"), 2)
		if s := p.State(); s.Error != "" {
			t.Errorf("expected new selection to clear the error, got %q", s.Error)
		}
	})

	t.Run("Queue", func(t *testing.T) {
		p, el, _ := newTestPlayer(t)
		tracks := []models.Track{track("A"), track("B"), track("C")}

		p.SetQueue(tracks, 5)
		if s := p.State(); s.QueueIndex != 2 || s.Track.Hash != "C" {
			t.Errorf("expected out of range index clamped to last, got %+v", s)
		}

		if p.Next() {
			t.Error("expected no next at end of queue")
		}
		if !p.Prev() {
			t.Fatal("expected prev to succeed")
		}
		if s := p.State(); s.Track.Hash != "B" || s.QueueIndex != 1 {
			t.Errorf("expected B, got %+v", s)
		}

		p.Enqueue(track("D"))
		if s := p.State(); len(s.Queue) != 4 || s.Track.Hash != "B" {
			t.Errorf("expected enqueue not to interrupt, got %+v", s)
		}

		if !p.Next() || p.State().Track.Hash != "C" {
			t.Error("expected next to play C")
		}

		waitLoads(t, el, 1)
		p.ClearQueue()
		s := p.State()
		if !s.Idle() || len(s.Queue) != 0 || s.QueueIndex != -1 {
			t.Errorf("expected cleared player, got %+v", s)
		}

		p.SetQueue(nil, 0)
		if !p.State().Idle() {
			t.Error("expected empty queue to leave player idle")
		}
	})

	t.Run("Close", func(t *testing.T) {
		el := tu.NewFakeElement()
		p := New(Opts{Resolver: newFakeResolver(), Media: el})

		if err := p.Close(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		select {
		case <-p.Done():
		default:
			t.Error("expected Done to be closed")
		}

		p.SelectTrack(track("A"))
		p.SetVolume(0.1)
		p.TogglePlay()
		if s := p.State(); !s.Idle() || s.Volume != DefaultVolume {
			t.Errorf("expected closed player to ignore actions, got %+v", s)
		}
		if err := p.Close(); err != nil {
			t.Errorf("expected second close to be a no-op, got %v", err)
		}
	})
}
