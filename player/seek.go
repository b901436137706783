// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package player

import (
	"math"
	"time"

	"github.com/chorusfm/chorus/playback"
)

// reloadState carries a stalled seek through its recovery reload.
type reloadState struct {
	op     int
	target float64
	resume bool
}

// seekNow is the single seek entry point on the loop. Large skips
// execute immediately; fine scrubs coalesce through a trailing
// debounce so only the last target of a drag is honored. Every seek
// mints a new op id, which cancels any in-flight continuation from
// an earlier one.
func (s *Session) seekNow(target float64) {
	cur := s.store.Current()
	if cur.IsZero() {
		return
	}
	if target < 0 {
		target = 0
	}
	if d := s.store.Status().Duration; d > 0 && target > d {
		target = d
	}

	s.seekOp++
	op := s.seekOp

	if math.Abs(target-s.store.Status().Position) >= s.t.LargeSkip {
		s.execSeek(op, target)
		return
	}

	// Optimistic position right away so the UI tracks the drag even
	// before the debounced seek fires.
	s.scrubTarget = target
	s.store.LockSeek(s.t.SeekLock + s.t.ScrubDebounce)
	s.store.SetPosition(target)
	s.scrub(func() {
		s.Post(func() {
			if op != s.seekOp {
				return
			}
			s.execSeek(op, s.scrubTarget)
		})
	})
}

// execSeek performs one concrete seek attempt. Podcasts go through
// the cache-aware ladder; local tracks and audiobooks seek directly
// under a short lock that drops stale engine positions.
func (s *Session) execSeek(op int, target float64) {
	if op != s.seekOp {
		return
	}
	cur := s.store.Current()
	if cur.IsZero() {
		return
	}

	s.store.LockSeek(s.t.SeekLock)
	s.store.SetPosition(target)

	if cur.Kind != playback.KindPodcast {
		s.eng.Seek(target)
		return
	}
	s.podcastSeek(op, cur, target)
}

// podcastSeek asks the server how much of the episode is cached
// before trusting the engine. Seeks into uncached bytes do not error,
// they silently land near zero, so the cached path verifies and the
// uncached path watches for the silent failure signature.
func (s *Session) podcastSeek(op int, cur playback.Item, target float64) {
	podcastID, episodeID, ok := playback.SplitEpisodeID(cur.ID)
	if !ok {
		s.eng.Seek(target)
		return
	}
	go func() {
		status, serr := s.server.GetCacheStatus(podcastID, episodeID)
		s.Post(func() {
			if op != s.seekOp {
				return
			}
			if serr != nil {
				s.log.PrintError("cacheStatus "+episodeID, serr)
				status.Cached = false
			}
			s.eng.Seek(target)
			if status.Cached {
				s.after(s.t.SeekVerify, func() { s.verifySeek(op, target) })
			} else {
				s.store.SetDownloadProgress(status.DownloadProgress)
				s.after(s.t.UncachedCheck, func() { s.checkUncachedSeek(op, target) })
			}
		})
	}()
}

// verifySeek confirms a seek into cached audio actually landed. A
// decoder stuck outside the tolerance means the cache index lied;
// recovery is a reload followed by the same seek.
func (s *Session) verifySeek(op int, target float64) {
	if op != s.seekOp {
		return
	}
	actual := s.eng.ActualCurrentTime()
	if math.Abs(actual-target) <= s.t.SeekTolerance {
		s.store.UnlockSeek()
		return
	}
	s.log.Printf("player: cached seek landed at %.1f, wanted %.1f; reloading", actual, target)
	s.reloadAndSeek(op, target, s.store.Status().Playing)
}

// checkUncachedSeek detects the silent-failure signature: the target
// was past the boundary but the decoder still reads before it. The
// session then pauses, surfaces a buffering state, and polls the
// cache until the episode is ready to reload.
func (s *Session) checkUncachedSeek(op int, target float64) {
	if op != s.seekOp {
		return
	}
	actual := s.eng.ActualCurrentTime()
	if target > s.t.SilentFailBoundary && actual < s.t.SilentFailBoundary {
		wasPlaying := s.store.Status().Playing
		s.eng.Pause()
		s.polling = true
		s.store.SetBuffering(target)
		s.store.LockSeek(s.t.CachePoll * time.Duration(s.t.CachePollCap))
		s.pollCache(op, target, wasPlaying, 0)
		return
	}
	s.store.UnlockSeek()
}

// pollCache waits for the server to finish caching, then reloads and
// re-seeks. Bounded; giving up leaves playback paused where it was
// rather than doing anything destructive.
func (s *Session) pollCache(op int, target float64, resume bool, attempt int) {
	if op != s.seekOp {
		s.polling = false
		return
	}
	if attempt >= s.t.CachePollCap {
		s.polling = false
		s.store.ClearBuffering()
		s.store.UnlockSeek()
		s.log.Print("player: gave up waiting for episode cache")
		return
	}
	cur := s.store.Current()
	podcastID, episodeID, ok := playback.SplitEpisodeID(cur.ID)
	if !ok {
		s.polling = false
		s.store.ClearBuffering()
		return
	}
	go func() {
		status, serr := s.server.GetCacheStatus(podcastID, episodeID)
		s.Post(func() {
			if op != s.seekOp {
				s.polling = false
				return
			}
			if serr == nil && status.Cached {
				s.reloadAndSeek(op, target, resume)
				return
			}
			if serr == nil {
				s.store.SetDownloadProgress(status.DownloadProgress)
			}
			s.after(s.t.CachePoll, func() { s.pollCache(op, target, resume, attempt+1) })
		})
	}()
}

// reloadAndSeek re-opens the current URL and finishes the seek once
// the engine reports the fresh load; handleLoaded picks the state up
// through pendingReload.
func (s *Session) reloadAndSeek(op int, target float64, resume bool) {
	s.polling = false
	s.pendingReload = &reloadState{op: op, target: target, resume: resume}
	s.loading = true
	if err := s.eng.Reload(); err != nil {
		s.log.PrintError("reload", err)
		s.pendingReload = nil
		s.loading = false
		s.store.ClearBuffering()
		s.store.UnlockSeek()
	}
}
