// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package player owns the local playback session: one engine, one
// queue, one event loop. Every mutation of playback state funnels
// through the loop goroutine, which is what makes the op-id staleness
// checks in load.go and seek.go race-free without locks.
package player

import (
	"time"

	"github.com/bep/debounce"

	"github.com/chorusfm/chorus/engine"
	"github.com/chorusfm/chorus/library"
	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/remote"
	"github.com/chorusfm/chorus/store"
)

// ServerClient is the slice of the library server the session talks
// to. *library.Connection satisfies it; tests substitute a fake.
type ServerClient interface {
	StreamURL(item playback.Item) (library.StreamInfo, error)
	GetCacheStatus(podcastID, episodeID string) (library.CacheStatus, error)
	SaveProgress(itemID string, position, duration float64, finished bool) error
	LoadProgress(itemID string) (library.Progress, bool, error)
}

// Journal is the local progress journal. *store.Store satisfies it.
// A nil journal is allowed; progress then lives only on the server.
type Journal interface {
	UpsertProgress(p store.Progress) error
	Progress(itemID string) (store.Progress, bool, error)
	PendingSync() ([]store.Progress, error)
	MarkSynced(itemID string) error
}

// CommandGate is the slice of the remote command runner the session
// needs: deferral flushing and the blocked-play bookkeeping.
type CommandGate interface {
	Flush()
	HandleBlockedPlay()
}

// RoleArbiter promotes this device to active player.
type RoleArbiter interface {
	BecomeActivePlayer()
}

// Session drives one audio engine from one playback store. All
// engine calls, all orchestration state, and all remote command
// execution happen on the loop goroutine; public methods post into
// it and wait.
type Session struct {
	eng     engine.Engine
	store   *playback.Store
	server  ServerClient
	journal Journal
	log     logger.LoggerInterface
	t       Timings

	gate    CommandGate
	arbiter RoleArbiter

	calls chan func()
	done  chan struct{}

	// Everything below is loop-owned.

	loaded     playback.Item // identity loaded or loading
	loadOp     int
	loading    bool
	loadingURL string
	resumeAt   float64 // applied once, on the next load completion
	hasResume  bool
	settle     bool // transferred context: delay the resume seek

	seekOp        int
	scrub         func(func())
	scrubTarget   float64
	polling       bool
	pendingReload *reloadState

	unsub    func()
	progQuit chan struct{}
	lastDur  float64
}

func NewSession(eng engine.Engine, st *playback.Store, server ServerClient, journal Journal, log logger.LoggerInterface, t Timings) *Session {
	return &Session{
		eng:     eng,
		store:   st,
		server:  server,
		journal: journal,
		log:     log,
		t:       t,
		calls:   make(chan func(), 64),
		done:    make(chan struct{}),
		scrub:   debounce.New(t.ScrubDebounce),
	}
}

// AttachRemote wires the command runner and coordinator in after
// construction; they need the session's Post and Local first.
func (s *Session) AttachRemote(gate CommandGate, arbiter RoleArbiter) {
	s.gate = gate
	s.arbiter = arbiter
}

// Start launches the loop, the engine event pump, and the progress
// reporter.
func (s *Session) Start() {
	go s.run()
	go s.pumpEngine()
	s.progQuit = make(chan struct{})
	go s.progressLoop(s.progQuit)
	s.unsub = s.store.Subscribe(func(c playback.Change) {
		if c == playback.ChangeMedia {
			s.Post(s.handleMediaChange)
		}
	})
}

// Shutdown flushes progress, stops the engine and ends the loop.
func (s *Session) Shutdown() {
	if s.unsub != nil {
		s.unsub()
	}
	if s.progQuit != nil {
		close(s.progQuit)
	}
	s.call(func() {
		s.reportProgress(false)
		s.eng.Stop()
	})
	close(s.done)
	s.eng.Close()
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.calls:
			fn()
		case <-s.done:
			return
		}
	}
}

func (s *Session) pumpEngine() {
	for {
		select {
		case ev, ok := <-s.eng.Events():
			if !ok {
				return
			}
			s.Post(func() { s.handleEngineEvent(ev) })
		case <-s.done:
			return
		}
	}
}

// Post schedules fn on the loop goroutine. Safe from any goroutine,
// including the loop itself.
func (s *Session) Post(fn func()) {
	select {
	case s.calls <- fn:
	case <-s.done:
	}
}

// call runs fn on the loop and waits for it. Deadlocks if invoked
// from the loop goroutine; loop-side code calls the internal methods
// directly instead.
func (s *Session) call(fn func()) {
	ch := make(chan struct{})
	s.Post(func() {
		fn()
		close(ch)
	})
	select {
	case <-ch:
	case <-s.done:
	}
}

// Do runs fn on the loop goroutine and waits. The UI uses it to talk
// to the loop-confined coordinator and runner.
func (s *Session) Do(fn func()) { s.call(fn) }

// after arms a timer whose callback re-enters the loop.
func (s *Session) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { s.Post(fn) })
}

// Public surface for the UI. Each posts into the loop and waits so
// key handlers observe their own effects.

func (s *Session) Play() error {
	var err error
	s.call(func() { err = s.playNow() })
	return err
}

func (s *Session) Pause() error      { s.call(s.pauseNow); return nil }
func (s *Session) TogglePlay() error { s.call(s.toggleNow); return nil }
func (s *Session) Next() error       { s.call(s.nextNow); return nil }
func (s *Session) Prev() error       { s.call(s.prevNow); return nil }
func (s *Session) Seek(sec float64) error {
	s.call(func() { s.seekNow(sec) })
	return nil
}

// SeekBy moves relative to the optimistic position.
func (s *Session) SeekBy(delta float64) error {
	s.call(func() {
		target := s.store.Status().Position + delta
		if target < 0 {
			target = 0
		}
		s.seekNow(target)
	})
	return nil
}

func (s *Session) SetVolume(v int) error {
	s.call(func() { s.setVolumeNow(v) })
	return nil
}

func (s *Session) AdjustVolume(delta int) error {
	s.call(func() { s.setVolumeNow(s.store.Volume() + delta) })
	return nil
}

func (s *Session) ToggleMute() error {
	s.call(func() {
		m := !s.store.Muted()
		s.store.SetMuted(m)
		s.eng.SetMuted(m)
	})
	return nil
}

// PlayQueue replaces the queue and starts at index. UI entry point;
// the remote equivalent arrives through Local().
func (s *Session) PlayQueue(items []playback.Item, index int) error {
	s.call(func() {
		s.store.SetQueue(items, index)
		s.store.SetPlaying(true)
	})
	return nil
}

func (s *Session) Stop() error {
	s.call(func() {
		s.reportProgress(false)
		s.store.SetPlaying(false)
		s.store.Clear()
	})
	return nil
}

// ResumeBlocked retries a play the output policy rejected, after the
// user accepted the prompt. Re-asserts the active role first.
func (s *Session) ResumeBlocked(bp remote.BlockedPlay) {
	s.call(func() {
		if s.arbiter != nil {
			s.arbiter.BecomeActivePlayer()
		}
		if bp.Volume > 0 {
			s.setVolumeNow(bp.Volume)
		}
		if bp.Position > 0 {
			s.seekNow(bp.Position)
		}
		s.store.SetPlaying(true)
		s.playNow()
	})
}

// Local returns the remote-layer view of this session. Its methods
// assume the loop goroutine; only the runner and coordinator may use
// it.
func (s *Session) Local() remote.LocalPlayer {
	return localPlayer{s}
}
