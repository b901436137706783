// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package enginetest provides a scriptable engine.Engine for tests.
// Loads complete only when the test says so, seeks can be made to
// fail silently past a fake cache boundary, and every call is
// recorded in arrival order.
package enginetest

import (
	"fmt"
	"math"
	"sync"

	"github.com/chorusfm/chorus/engine"
)

type LoadCall struct {
	URL      string
	Autoplay bool
	Format   string
}

type Fake struct {
	mu sync.Mutex

	events chan engine.Event
	closed bool

	url         string
	loading     bool
	playing     bool
	pendingPlay bool
	displayPos  float64
	actualPos   float64
	duration    float64
	volume      int
	muted       bool

	// cachedUpTo simulates a server still writing the file: seeks
	// past it move the display position but leave the decoder stuck.
	cachedUpTo float64

	failNextPlay error

	loads    []LoadCall
	seeks    []float64
	timeline []string
}

var _ engine.Engine = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		events:     make(chan engine.Event, 256),
		volume:     100,
		cachedUpTo: math.Inf(1),
	}
}

func (f *Fake) Load(url string, autoplay bool, format string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.loading = true
	f.playing = false
	f.pendingPlay = autoplay
	f.displayPos = 0
	f.actualPos = 0
	f.loads = append(f.loads, LoadCall{URL: url, Autoplay: autoplay, Format: format})
	f.timeline = append(f.timeline, "load("+url+")")
	return nil
}

// CompleteLoad resolves an in-flight load of url. The fake stays
// loading if a different url superseded this one, matching a backend
// that dropped the old fetch.
func (f *Fake) CompleteLoad(url string, duration float64) {
	f.mu.Lock()
	if url == f.url {
		f.loading = false
		f.duration = duration
		if f.pendingPlay {
			f.pendingPlay = false
			f.playing = true
		}
	}
	playing := f.playing && url == f.url
	f.mu.Unlock()

	f.emit(engine.Event{Type: engine.EventLoad, URL: url, Duration: duration})
	if playing {
		f.emit(engine.Event{Type: engine.EventPlay})
	}
}

func (f *Fake) FailLoad(url string, err error) {
	f.mu.Lock()
	if url == f.url {
		f.loading = false
		f.pendingPlay = false
	}
	f.mu.Unlock()
	f.emit(engine.Event{Type: engine.EventLoadError, URL: url, Err: err})
}

func (f *Fake) Play() error {
	f.mu.Lock()
	f.timeline = append(f.timeline, "play")
	if err := f.failNextPlay; err != nil {
		f.failNextPlay = nil
		f.mu.Unlock()
		return err
	}
	f.playing = true
	f.pendingPlay = false
	f.mu.Unlock()
	f.emit(engine.Event{Type: engine.EventPlay})
	return nil
}

func (f *Fake) Pause() error {
	f.mu.Lock()
	f.timeline = append(f.timeline, "pause")
	f.playing = false
	f.pendingPlay = false
	f.mu.Unlock()
	f.emit(engine.Event{Type: engine.EventPause})
	return nil
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	f.timeline = append(f.timeline, "stop")
	f.url = ""
	f.loading = false
	f.playing = false
	f.pendingPlay = false
	f.displayPos = 0
	f.actualPos = 0
	f.duration = 0
	f.mu.Unlock()
	return nil
}

func (f *Fake) Seek(seconds float64) error {
	f.mu.Lock()
	f.timeline = append(f.timeline, fmt.Sprintf("seek(%g)", seconds))
	f.seeks = append(f.seeks, seconds)
	f.displayPos = seconds
	if seconds <= f.cachedUpTo {
		f.actualPos = seconds
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) Reload() error {
	f.mu.Lock()
	f.timeline = append(f.timeline, "reload")
	f.loading = true
	f.playing = false
	f.pendingPlay = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.displayPos
}

func (f *Fake) ActualCurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actualPos
}

func (f *Fake) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *Fake) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *Fake) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Fake) IsPendingPlay() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingPlay
}

func (f *Fake) SetVolume(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	f.timeline = append(f.timeline, fmt.Sprintf("setVolume(%d)", v))
	return nil
}

func (f *Fake) SetMuted(m bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = m
	return nil
}

func (f *Fake) Events() <-chan engine.Event {
	return f.events
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

// --- test controls ---

// SetCachedUpTo makes seeks past s fail silently: the decoder
// position stops advancing past the boundary.
func (f *Fake) SetCachedUpTo(s float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cachedUpTo = s
	if f.actualPos > s {
		f.actualPos = s
	}
}

// FailNextPlay makes the next Play call return err.
func (f *Fake) FailNextPlay(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextPlay = err
}

// EmitPlayError injects an asynchronous play failure.
func (f *Fake) EmitPlayError(err error) {
	f.mu.Lock()
	f.playing = false
	f.pendingPlay = false
	f.mu.Unlock()
	f.emit(engine.Event{Type: engine.EventPlayError, Err: err})
}

// EmitTimeUpdate injects a decoder position report.
func (f *Fake) EmitTimeUpdate(pos float64) {
	f.mu.Lock()
	f.displayPos = pos
	if pos <= f.cachedUpTo {
		f.actualPos = pos
	}
	f.mu.Unlock()
	f.emit(engine.Event{Type: engine.EventTimeUpdate, Position: pos})
}

// EmitEnd injects an end-of-media event.
func (f *Fake) EmitEnd() {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
	f.emit(engine.Event{Type: engine.EventEnd})
}

func (f *Fake) Volume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *Fake) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *Fake) LoadedURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// Loads returns every Load call in order.
func (f *Fake) Loads() []LoadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LoadCall, len(f.loads))
	copy(out, f.loads)
	return out
}

// Seeks returns every Seek target in order.
func (f *Fake) Seeks() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.seeks))
	copy(out, f.seeks)
	return out
}

// Timeline returns a flat call trace like ["load(u)", "pause",
// "seek(30)"] for ordering assertions.
func (f *Fake) Timeline() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.timeline))
	copy(out, f.timeline)
	return out
}

func (f *Fake) emit(ev engine.Event) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	f.events <- ev
}
