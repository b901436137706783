// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package playback

import "time"

// Current returns the loaded media identity; zero Item when nothing
// is loaded.
func (s *Store) Current() Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) PlaybackKind() Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.IsZero() {
		return KindNone
	}
	return s.current.Kind
}

// Queue returns a copy of the track queue and the current index.
func (s *Store) Queue() ([]Item, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := make([]Item, len(s.queue))
	copy(q, s.queue)
	return q, s.qIndex
}

func (s *Store) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// SetQueue replaces the track queue and makes items[index] current.
// An empty queue clears playback. Only tracks queue; audiobook and
// podcast items go through SetItem.
func (s *Store) SetQueue(items []Item, index int) {
	s.mu.Lock()
	if len(items) == 0 {
		s.clearLocked()
		s.mu.Unlock()
		s.notify(ChangeMedia)
		return
	}
	if index < 0 {
		index = 0
	} else if index >= len(items) {
		index = len(items) - 1
	}
	s.queue = make([]Item, len(items))
	copy(s.queue, items)
	s.qIndex = index
	s.setCurrentLocked(s.queue[index])
	s.mu.Unlock()
	s.notify(ChangeMedia)
}

// SetItem makes a single item current, clearing the queue. Setting
// one kind clears the others; there is exactly one current field, so
// two kinds can never be set at once.
func (s *Store) SetItem(item Item) {
	s.mu.Lock()
	if item.IsZero() {
		s.clearLocked()
	} else {
		s.queue = nil
		s.qIndex = 0
		s.setCurrentLocked(item)
	}
	s.mu.Unlock()
	s.notify(ChangeMedia)
}

// Clear drops identity, queue, and progress. Volume, mute, and role
// are untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	s.notify(ChangeMedia)
}

// Advance moves to the next queued track. ok is false at queue end
// or when no queue is loaded; the store is unchanged then.
func (s *Store) Advance() (Item, bool) {
	s.mu.Lock()
	if len(s.queue) == 0 || s.qIndex+1 >= len(s.queue) {
		s.mu.Unlock()
		return Item{}, false
	}
	s.qIndex++
	s.setCurrentLocked(s.queue[s.qIndex])
	it := s.current
	s.mu.Unlock()
	s.notify(ChangeMedia)
	return it, true
}

// Retreat moves to the previous queued track.
func (s *Store) Retreat() (Item, bool) {
	s.mu.Lock()
	if len(s.queue) == 0 || s.qIndex <= 0 {
		s.mu.Unlock()
		return Item{}, false
	}
	s.qIndex--
	s.setCurrentLocked(s.queue[s.qIndex])
	it := s.current
	s.mu.Unlock()
	s.notify(ChangeMedia)
	return it, true
}

func (s *Store) setCurrentLocked(item Item) {
	s.current = item
	s.status.Position = 0
	s.status.Duration = item.Duration
	s.status.Buffering = false
	s.status.TargetSeek = 0
	s.status.HasTarget = false
	s.status.CanSeek = item.Kind != KindPodcast
	s.status.DownloadPct = -1
	s.seekLockUntil = time.Time{}
}

func (s *Store) clearLocked() {
	s.current = Item{}
	s.queue = nil
	s.qIndex = 0
	s.status.Playing = false
	s.status.Position = 0
	s.status.Duration = 0
	s.status.Buffering = false
	s.status.TargetSeek = 0
	s.status.HasTarget = false
	s.status.CanSeek = true
	s.status.DownloadPct = -1
	s.seekLockUntil = time.Time{}
}
