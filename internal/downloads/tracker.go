package downloads

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	bytesPerMB = 1024 * 1024

	// minSpeedWindow is the shortest interval a speed sample is computed over.
	minSpeedWindow = 100 * time.Millisecond
	// historyRefresh forces the speed baseline forward when bytes stop moving.
	historyRefresh = 500 * time.Millisecond
)

// Entry is the progress snapshot for one in-flight download.
//
// TimeRemaining is 0 both when the download is done and when it is unknown;
// treat 0 with Progress < 100 as unknown.
type Entry struct {
	Hash          string  `json:"hash"`
	Progress      int     `json:"progress"`       // percent, 0-100
	Loaded        int64   `json:"loaded"`         // bytes
	Total         int64   `json:"total"`          // bytes, 0 when unknown
	Filename      string  `json:"filename"`       // display name
	Speed         float64 `json:"speed"`          // MB/s
	TimeRemaining float64 `json:"time_remaining"` // seconds
}

// sample is the baseline a speed is measured against.
type sample struct {
	at     time.Time
	loaded int64
}

// Tracker keeps one [Entry] per content hash. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	now      func() time.Time
	entries  map[string]Entry
	history  map[string]sample
	retiring map[string]*time.Timer
}

// NewTracker creates an empty [Tracker]. now defaults to [time.Now].
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:      now,
		entries:  make(map[string]Entry),
		history:  make(map[string]sample),
		retiring: make(map[string]*time.Timer),
	}
}

// percent returns loaded/total as a whole percentage in [0, 100], 0 when total is unknown.
func percent(loaded, total int64) int {
	if total <= 0 || loaded <= 0 {
		return 0
	}
	p := math.Round(float64(loaded) / float64(total) * 100)
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return int(math.Min(100, p))
}

// ReportProgress records that loaded of total bytes of hash have arrived.
//
// Speed is only re-measured when at least 100ms passed and bytes moved since the
// baseline; otherwise the previous speed is kept. Negative inputs count as 0.
// Any pending [Tracker.Retire] for hash is cancelled.
func (t *Tracker) ReportProgress(hash string, loaded, total int64, filename string) Entry {
	loaded = max(loaded, 0)
	total = max(total, 0)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cancelRetire(hash)

	prev, ok := t.history[hash]
	if !ok {
		prev = sample{at: now}
		t.history[hash] = prev
	}

	elapsed := now.Sub(prev.at)
	delta := loaded - prev.loaded

	speed := t.entries[hash].Speed
	if elapsed >= minSpeedWindow && delta > 0 {
		speed = float64(delta) / bytesPerMB / elapsed.Seconds()
	}

	var eta float64
	if total > 0 && speed > 0 {
		eta = math.Max(0, float64(total-loaded)/bytesPerMB/speed)
	}

	if loaded != prev.loaded || elapsed >= historyRefresh {
		t.history[hash] = sample{at: now, loaded: loaded}
	}

	entry := Entry{
		Hash:          hash,
		Progress:      percent(loaded, total),
		Loaded:        loaded,
		Total:         total,
		Filename:      filename,
		Speed:         speed,
		TimeRemaining: eta,
	}
	t.entries[hash] = entry
	return entry
}

// ClearProgress forgets hash. Clearing an unknown hash is a no-op.
func (t *Tracker) ClearProgress(hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(hash)
}

// ClearAll forgets every download.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, timer := range t.retiring {
		timer.Stop()
	}
	t.entries = make(map[string]Entry)
	t.history = make(map[string]sample)
	t.retiring = make(map[string]*time.Timer)
}

// IsDownloading reports whether hash has an entry strictly between 0% and 100%.
//
// A download at 0% or one finished and waiting to be retired is not downloading;
// use [Tracker.Get] to check presence.
func (t *Tracker) IsDownloading(hash string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[hash]
	return ok && e.Progress > 0 && e.Progress < 100
}

// Get returns the entry for hash.
func (t *Tracker) Get(hash string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[hash]
	return e, ok
}

// Entries returns a copy of all entries ordered by filename, then hash.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename < out[j].Filename
		}
		return out[i].Hash < out[j].Hash
	})
	return out
}

// Retire removes hash after grace, leaving the finished entry visible until then.
// New progress for hash before the grace period ends keeps the entry.
func (t *Tracker) Retire(hash string, grace time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[hash]; !ok {
		return
	}

	t.cancelRetire(hash)
	if grace <= 0 {
		t.remove(hash)
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(grace, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.retiring[hash] == timer {
			t.remove(hash)
		}
	})
	t.retiring[hash] = timer
}

// remove drops every trace of hash. Callers hold t.mu.
func (t *Tracker) remove(hash string) {
	t.cancelRetire(hash)
	delete(t.entries, hash)
	delete(t.history, hash)
}

func (t *Tracker) cancelRetire(hash string) {
	if timer, ok := t.retiring[hash]; ok {
		timer.Stop()
		delete(t.retiring, hash)
	}
}
