package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/media"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/services"
	"github.com/desertthunder/mdx/internal/shared"
)

const (
	// tickInterval caps position updates at 10 per second.
	tickInterval    = 100 * time.Millisecond
	defaultEndGrace = time.Second
)

// Resolver looks up what a track needs before it can play.
type Resolver interface {
	GetSongURL(ctx context.Context, hash string) (*services.SongURL, error)
	GetAlbumImages(ctx context.Context, hash, albumID string) (*services.AlbumImages, error)
}

// Opts configures a [Player].
type Opts struct {
	Resolver Resolver
	Media    media.Element
	EndGrace time.Duration // how long a finished track stays visible, default 1s
	Logger   *log.Logger
}

// Player owns the playback [State] and keeps a [media.Element] in step with it.
//
// Every method is safe for concurrent use. After [Player.Close] all methods are no-ops.
type Player struct {
	resolver Resolver
	media    media.Element
	endGrace time.Duration
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	gen        uint64 // bumped whenever the current track changes
	loads      int    // Load calls issued to media
	current    int    // load number of the current source, 0 while resolving
	autoplayed bool
	closed     bool

	lastTick   time.Time
	pendingPos float64
	hasPending bool
	tickTimer  *time.Timer
	endTimer   *time.Timer

	changed chan struct{}
	watched chan struct{}
}

// New creates a [Player] and starts consuming media events.
func New(opts Opts) *Player {
	if opts.EndGrace <= 0 {
		opts.EndGrace = defaultEndGrace
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		resolver: opts.Resolver,
		media:    opts.Media,
		endGrace: opts.EndGrace,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		state:    DefaultState(),
		changed:  make(chan struct{}, 1),
		watched:  make(chan struct{}),
	}
	go p.watch()
	return p
}

// State returns a copy of the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.Queue = append([]models.Track(nil), s.Queue...)
	if s.Track != nil {
		track := *s.Track
		s.Track = &track
	}
	return s
}

// Changed receives a value after one or more state changes. Changes are coalesced.
func (p *Player) Changed() <-chan struct{} {
	return p.changed
}

// Done is closed once the player is closed and the media event stream has drained.
func (p *Player) Done() <-chan struct{} {
	return p.watched
}

// dispatch applies a to the state. Callers hold p.mu.
func (p *Player) dispatch(a Action) {
	p.state = Reduce(p.state, a)
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// SelectTrack makes track current and starts loading it; playback starts once the media
// reports its duration. Results for a track that has since been replaced are discarded.
func (p *Player) SelectTrack(track models.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.selectLocked(track)
}

func (p *Player) selectLocked(track models.Track) {
	p.stopTimersLocked()
	if p.current != 0 {
		if err := p.media.Stop(); err != nil {
			p.logger.Debug("failed to stop media", "error", err)
		}
	}

	p.gen++
	p.current = 0
	p.autoplayed = false
	p.dispatch(TrackSelected{Track: track})

	go p.resolve(p.gen, track)
}

// resolve fetches the URL and cover for track, then binds the media source if gen is still current.
func (p *Player) resolve(gen uint64, track models.Track) {
	url := track.URL
	if url == "" {
		song, err := p.resolver.GetSongURL(p.ctx, track.Hash)
		if err != nil {
			p.failIfCurrent(gen, failure(shared.ErrMediaLoad, err))
			return
		}
		url = song.Best()
	}

	var cover string
	if images, err := p.resolver.GetAlbumImages(p.ctx, track.Hash, track.AlbumID); err != nil {
		p.logger.Debug("no cover art", "hash", track.Hash, "error", err)
	} else {
		cover = images.CoverURL()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || gen != p.gen {
		p.logger.Debug("dropping stale track resolution", "hash", track.Hash)
		return
	}

	p.dispatch(TrackResolved{URL: url, Cover: cover})

	p.loads++
	if err := p.media.Load(url); err != nil {
		p.dispatch(Failed{Message: failure(shared.ErrMediaLoad, err)})
		return
	}
	p.current = p.loads
}

func (p *Player) failIfCurrent(gen uint64, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed && gen == p.gen {
		p.dispatch(Failed{Message: msg})
	}
}

// failure renders err as a state error message under sentinel unless it already carries one.
func failure(sentinel, err error) string {
	for _, known := range []error{shared.ErrPlaybackFailed, shared.ErrMediaLoad, shared.ErrMediaClosed} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return fmt.Errorf("%w: %v", sentinel, err).Error()
}

// TogglePlay pauses when playing and plays otherwise.
func (p *Player) TogglePlay() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.state.Track == nil {
		return
	}
	if p.state.IsPlaying {
		p.pauseLocked()
	} else {
		p.playLocked()
	}
}

// Play starts playback of the current track. Failures are recorded in [State.Error].
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.playLocked()
	}
}

// playLocked is a no-op until the source is loaded, after a failure, and while a
// finished track waits out its end grace. Only a new selection recovers from those.
func (p *Player) playLocked() {
	if p.state.Track == nil || p.state.IsLoading || p.current == 0 {
		return
	}
	if p.state.Error != "" || p.endTimer != nil {
		return
	}
	if err := p.media.Play(); err != nil {
		p.logger.Warn("playback failed", "error", err)
		p.dispatch(Failed{Message: failure(shared.ErrPlaybackFailed, err)})
		return
	}
	p.dispatch(Played{})
}

// Pause stops playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.pauseLocked()
	}
}

func (p *Player) pauseLocked() {
	if p.current != 0 {
		if err := p.media.Pause(); err != nil {
			p.logger.Debug("failed to pause media", "error", err)
		}
	}
	p.hasPending = false
	p.dispatch(Paused{})
}

// SeekTo moves to t seconds, bounded by [0, duration] once the duration is known.
func (p *Player) SeekTo(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	pos := clampPosition(t, p.state.Duration)
	if p.current != 0 {
		if err := p.media.Seek(pos); err != nil {
			p.logger.Debug("failed to seek", "error", err)
		}
	}
	p.hasPending = false
	p.dispatch(Seeked{Position: pos})
}

// SeekBy moves delta seconds from the current position.
func (p *Player) SeekBy(delta float64) {
	p.mu.Lock()
	pos := p.state.CurrentTime + delta
	p.mu.Unlock()
	p.SeekTo(pos)
}

// SetVolume sets the volume, clamped to [0, 1].
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	v = clamp(v, 0, 1)
	if err := p.media.SetVolume(v); err != nil {
		p.logger.Debug("failed to set volume", "error", err)
	}
	p.dispatch(VolumeChanged{Level: v})
}

// SetPlaybackRate sets the rate, clamped to [0.5, 2].
func (p *Player) SetPlaybackRate(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	r = clamp(r, MinRate, MaxRate)
	if err := p.media.SetSpeed(r); err != nil {
		p.logger.Debug("failed to set speed", "error", err)
	}
	p.dispatch(RateChanged{Rate: r})
}

// SetQueue replaces the queue and starts playing tracks[index]. An empty list clears the queue.
func (p *Player) SetQueue(tracks []models.Track, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if len(tracks) == 0 {
		p.clearQueueLocked()
		return
	}

	index = int(clamp(float64(index), 0, float64(len(tracks)-1)))
	p.dispatch(QueueChanged{Tracks: tracks, Index: index})
	p.selectLocked(tracks[index])
}

// Enqueue appends tracks to the queue without interrupting playback.
func (p *Player) Enqueue(tracks ...models.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(tracks) == 0 {
		return
	}
	queue := append(append([]models.Track(nil), p.state.Queue...), tracks...)
	p.dispatch(QueueChanged{Tracks: queue, Index: p.state.QueueIndex})
}

// Next plays the following queued track and reports whether there was one.
func (p *Player) Next() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !p.state.HasNext() {
		return false
	}
	p.advanceLocked(p.state.QueueIndex + 1)
	return true
}

// Prev plays the previous queued track and reports whether there was one.
func (p *Player) Prev() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !p.state.HasPrev() {
		return false
	}
	p.advanceLocked(p.state.QueueIndex - 1)
	return true
}

func (p *Player) advanceLocked(index int) {
	queue := p.state.Queue
	p.dispatch(QueueChanged{Tracks: queue, Index: index})
	p.selectLocked(queue[index])
}

// ClearQueue empties the queue and unloads the current track.
func (p *Player) ClearQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.clearQueueLocked()
	}
}

func (p *Player) clearQueueLocked() {
	p.dispatch(QueueChanged{})
	p.clearLocked()
}

// clearLocked unloads the current track and returns to idle.
func (p *Player) clearLocked() {
	p.stopTimersLocked()
	if p.current != 0 {
		if err := p.media.Stop(); err != nil {
			p.logger.Debug("failed to stop media", "error", err)
		}
	}
	p.gen++
	p.current = 0
	p.dispatch(Cleared{})
}

// Close stops playback and releases the media element.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.gen++
	p.stopTimersLocked()
	p.cancel()
	p.mu.Unlock()

	err := p.media.Close()
	<-p.watched
	return err
}

func (p *Player) stopTimersLocked() {
	if p.tickTimer != nil {
		p.tickTimer.Stop()
		p.tickTimer = nil
	}
	if p.endTimer != nil {
		p.endTimer.Stop()
		p.endTimer = nil
	}
	p.hasPending = false
}

// watch applies media events until the element closes its event stream.
func (p *Player) watch() {
	defer close(p.watched)
	for ev := range p.media.Events() {
		p.handle(ev)
	}
}

func (p *Player) handle(ev media.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.current == 0 || ev.Load != p.current {
		return
	}

	switch ev.Kind {
	case media.MetadataReady:
		p.dispatch(MetadataLoaded{Duration: ev.Value})
		if !p.autoplayed {
			p.autoplayed = true
			p.playLocked()
		}
	case media.TimeUpdate:
		p.timeUpdateLocked(ev.Value)
	case media.Ended:
		p.endedLocked()
	case media.Failed:
		err := ev.Err
		if err == nil {
			err = shared.ErrMediaLoad
		}
		p.dispatch(Failed{Message: failure(shared.ErrPlaybackFailed, err)})
	}
}

// timeUpdateLocked applies a position at most once per tickInterval; positions arriving
// in between are coalesced and the latest is applied when the interval ends.
func (p *Player) timeUpdateLocked(pos float64) {
	if !p.state.IsPlaying {
		return
	}

	now := time.Now()
	wait := tickInterval - now.Sub(p.lastTick)
	if wait <= 0 {
		p.lastTick = now
		p.hasPending = false
		p.dispatch(TimeUpdated{Position: pos})
		return
	}

	p.pendingPos = pos
	p.hasPending = true
	if p.tickTimer != nil {
		return
	}

	gen := p.gen
	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.tickTimer == timer {
			p.tickTimer = nil
		}
		if p.closed || gen != p.gen || !p.hasPending {
			return
		}
		p.lastTick = time.Now()
		p.hasPending = false
		p.dispatch(TimeUpdated{Position: p.pendingPos})
	})
	p.tickTimer = timer
}

// endedLocked advances the queue, or shows the finished track for endGrace before going idle.
func (p *Player) endedLocked() {
	if p.state.HasNext() {
		p.advanceLocked(p.state.QueueIndex + 1)
		return
	}

	p.hasPending = false
	p.dispatch(Finished{})

	gen := p.gen
	p.endTimer = time.AfterFunc(p.endGrace, func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed || gen != p.gen {
			return
		}
		p.endTimer = nil
		p.clearLocked()
	})
}
