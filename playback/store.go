// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package playback

import (
	"sync"
	"time"
)

// Store is the single source of truth for what this device believes
// is playing: media identity + queue, progress status, volume, and
// the device role. It is a pure state holder; it never touches the
// engine or the network.
//
// All mutation normally happens on the player session's loop
// goroutine, but the store is safe for concurrent reads from the UI
// and transport goroutines.
type Store struct {
	mu sync.RWMutex

	current Item
	queue   []Item
	qIndex  int

	status Status

	volume int
	muted  bool

	activePlayer bool

	seekLockUntil time.Time

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

func NewStore() *Store {
	return &Store{
		volume: 100,
		status: Status{CanSeek: true, DownloadPct: -1},
		subs:   make(map[int]func(Change)),
	}
}

// Subscribe registers fn for change notifications and returns an
// unsubscribe func. fn runs synchronously on the mutating goroutine
// and must not call back into the store's setters.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) IsActivePlayer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePlayer
}

func (s *Store) SetActivePlayer(active bool) {
	s.mu.Lock()
	changed := s.activePlayer != active
	s.activePlayer = active
	s.mu.Unlock()
	if changed {
		s.notify(ChangeRole)
	}
}

func (s *Store) Volume() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

func (s *Store) Muted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

// SetVolume clamps to 0..100. Volume survives media changes.
func (s *Store) SetVolume(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	s.mu.Lock()
	changed := s.volume != v
	s.volume = v
	s.mu.Unlock()
	if changed {
		s.notify(ChangeVolume)
	}
}

func (s *Store) SetMuted(m bool) {
	s.mu.Lock()
	changed := s.muted != m
	s.muted = m
	s.mu.Unlock()
	if changed {
		s.notify(ChangeVolume)
	}
}

func (s *Store) SetPlaying(p bool) {
	s.mu.Lock()
	changed := s.status.Playing != p
	s.status.Playing = p
	s.mu.Unlock()
	if changed {
		s.notify(ChangeStatus)
	}
}

func (s *Store) SetDuration(d float64) {
	s.mu.Lock()
	s.status.Duration = d
	s.mu.Unlock()
	s.notify(ChangeStatus)
}

// SetPositionFromEngine applies a timeupdate coming from the engine.
// It reports false, dropping the update, while a seek lock is held:
// the engine may still be reporting the pre-seek position, and that
// must not overwrite the optimistic position a seek already wrote.
func (s *Store) SetPositionFromEngine(t float64) bool {
	s.mu.Lock()
	if time.Now().Before(s.seekLockUntil) {
		s.mu.Unlock()
		return false
	}
	s.status.Position = t
	s.mu.Unlock()
	s.notify(ChangeStatus)
	return true
}

// SetPosition writes the position unconditionally. Seek paths use it
// for their optimistic update.
func (s *Store) SetPosition(t float64) {
	s.mu.Lock()
	s.status.Position = t
	s.mu.Unlock()
	s.notify(ChangeStatus)
}

// LockSeek opens a window during which engine timeupdates are
// dropped. A later LockSeek extends the window; UnlockSeek closes it
// early (confirmed seek or load completion).
func (s *Store) LockSeek(d time.Duration) {
	s.mu.Lock()
	until := time.Now().Add(d)
	if until.After(s.seekLockUntil) {
		s.seekLockUntil = until
	}
	s.mu.Unlock()
}

func (s *Store) UnlockSeek() {
	s.mu.Lock()
	s.seekLockUntil = time.Time{}
	s.mu.Unlock()
}

func (s *Store) SeekLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Now().Before(s.seekLockUntil)
}

// SetBuffering marks a stalled seek waiting for cache, recording the
// position it is trying to reach.
func (s *Store) SetBuffering(target float64) {
	s.mu.Lock()
	s.status.Buffering = true
	s.status.TargetSeek = target
	s.status.HasTarget = true
	s.mu.Unlock()
	s.notify(ChangeStatus)
}

func (s *Store) ClearBuffering() {
	s.mu.Lock()
	s.status.Buffering = false
	s.status.TargetSeek = 0
	s.status.HasTarget = false
	s.mu.Unlock()
	s.notify(ChangeStatus)
}

func (s *Store) SetCanSeek(ok bool) {
	s.mu.Lock()
	changed := s.status.CanSeek != ok
	s.status.CanSeek = ok
	s.mu.Unlock()
	if changed {
		s.notify(ChangeStatus)
	}
}

// SetDownloadProgress records server cache progress (0..100);
// negative means unknown.
func (s *Store) SetDownloadProgress(pct float64) {
	s.mu.Lock()
	s.status.DownloadPct = pct
	s.mu.Unlock()
	s.notify(ChangeStatus)
}
