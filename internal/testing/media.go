package testing

import (
	"fmt"
	"sync"

	"github.com/desertthunder/mdx/internal/media"
	"github.com/desertthunder/mdx/internal/shared"
)

// FakeElement is an in-memory [media.Element]. Tests push events with Emit.
type FakeElement struct {
	mu       sync.Mutex
	calls    []string
	loads    int
	urls     []string
	volume   float64
	speed    float64
	position float64
	closed   bool

	PlayErr error // returned by Play when set
	LoadErr error // returned by Load when set

	events chan media.Event
}

// NewFakeElement creates a [FakeElement] with a generously buffered event channel.
func NewFakeElement() *FakeElement {
	return &FakeElement{events: make(chan media.Event, 64), volume: 1, speed: 1}
}

func (f *FakeElement) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return shared.ErrMediaClosed
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *FakeElement) Load(url string) error {
	if err := f.record("load " + url); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.urls = append(f.urls, url)
	return f.LoadErr
}

func (f *FakeElement) Play() error {
	if err := f.record("play"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PlayErr
}

func (f *FakeElement) Pause() error {
	return f.record("pause")
}

func (f *FakeElement) Seek(seconds float64) error {
	if err := f.record(fmt.Sprintf("seek %.2f", seconds)); err != nil {
		return err
	}
	f.mu.Lock()
	f.position = seconds
	f.mu.Unlock()
	return nil
}

func (f *FakeElement) SetVolume(level float64) error {
	if err := f.record(fmt.Sprintf("volume %.2f", level)); err != nil {
		return err
	}
	f.mu.Lock()
	f.volume = level
	f.mu.Unlock()
	return nil
}

func (f *FakeElement) SetSpeed(rate float64) error {
	if err := f.record(fmt.Sprintf("speed %.2f", rate)); err != nil {
		return err
	}
	f.mu.Lock()
	f.speed = rate
	f.mu.Unlock()
	return nil
}

func (f *FakeElement) Stop() error {
	return f.record("stop")
}

func (f *FakeElement) Events() <-chan media.Event {
	return f.events
}

func (f *FakeElement) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

// SetPlayErr changes the error returned by Play.
func (f *FakeElement) SetPlayErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PlayErr = err
}

// Emit sends ev tagged with the given load number.
func (f *FakeElement) Emit(load int, kind media.EventKind, value float64, err error) {
	f.events <- media.Event{Kind: kind, Load: load, Value: value, Err: err}
}

// Loads returns how many times Load was called.
func (f *FakeElement) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// URLs returns the loaded URLs in order.
func (f *FakeElement) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// Calls returns every recorded command in order.
func (f *FakeElement) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Volume returns the last applied volume.
func (f *FakeElement) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

// Speed returns the last applied rate.
func (f *FakeElement) Speed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speed
}
