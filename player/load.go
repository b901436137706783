// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package player

import (
	"github.com/chorusfm/chorus/engine"
	"github.com/chorusfm/chorus/playback"
)

// handleMediaChange reacts to the current item changing in the store.
// Each accepted change mints a new load op id; every asynchronous
// continuation re-checks its captured id against the live one, so a
// continuation for a superseded load drops itself instead of
// clobbering the newer state.
func (s *Session) handleMediaChange() {
	cur := s.store.Current()

	if cur.IsZero() {
		s.loadOp++
		s.seekOp++
		s.loaded = playback.Item{}
		s.loading = false
		s.loadingURL = ""
		s.pendingReload = nil
		s.polling = false
		s.hasResume = false
		s.settle = false
		s.store.ClearBuffering()
		s.eng.Stop()
		return
	}

	if cur.Same(s.loaded) {
		// Same identity re-selected. Never reload; at most restart
		// from zero when the intent is to play and nothing sounds.
		if s.loading || s.store.SeekLocked() {
			return
		}
		if s.store.Status().Playing && s.store.IsActivePlayer() && !s.eng.IsPlaying() {
			s.eng.Seek(0)
			s.store.SetPosition(0)
			if err := s.eng.Play(); err != nil {
				s.handlePlayFailure(err)
			}
		}
		return
	}

	if s.loading {
		// The in-flight load wins; finishLoad re-dispatches if the
		// selection moved on in the meantime.
		return
	}

	s.loaded = cur
	s.loadOp++
	s.seekOp++
	op := s.loadOp
	s.loading = true
	s.loadingURL = ""
	s.pendingReload = nil
	s.polling = false
	s.lastDur = 0
	s.store.ClearBuffering()

	wantResume := !s.hasResume && cur.Kind != playback.KindTrack
	go s.resolveAndLoad(op, cur, wantResume)
}

// resolveAndLoad runs off-loop: stream resolution and the resume
// lookup are network calls. The continuation posts back and applies
// only if the op id still matches.
func (s *Session) resolveAndLoad(op int, it playback.Item, wantResume bool) {
	info, err := s.server.StreamURL(it)
	var resume float64
	var haveResume bool
	if err == nil && wantResume {
		resume, haveResume = s.lookupResume(it)
	}
	s.Post(func() {
		if op != s.loadOp {
			return
		}
		if err != nil {
			s.log.PrintError("resolve "+it.ID, err)
			s.loading = false
			s.failCurrent()
			return
		}
		if haveResume {
			s.resumeAt = resume
			s.hasResume = true
		}
		s.loadingURL = info.URL
		if lerr := s.eng.Load(info.URL, false, info.Format); lerr != nil {
			s.log.PrintError("load "+it.ID, lerr)
			s.loading = false
			s.failCurrent()
		}
	})
}

// lookupResume prefers the local journal, falling back to the
// server. A finished item restarts from zero.
func (s *Session) lookupResume(it playback.Item) (float64, bool) {
	if s.journal != nil {
		if p, ok, err := s.journal.Progress(it.ID); err == nil && ok {
			if p.Finished || p.Position <= 0 {
				return 0, false
			}
			return p.Position, true
		}
	}
	p, ok, err := s.server.LoadProgress(it.ID)
	if err != nil || !ok || p.Finished || p.Position <= 0 {
		return 0, false
	}
	return p.Position, true
}

func (s *Session) handleEngineEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventLoad:
		s.handleLoaded(ev)
	case engine.EventLoadError:
		if !s.loading || (ev.URL != "" && ev.URL != s.loadingURL) {
			return
		}
		s.log.PrintError("load "+s.loaded.ID, ev.Err)
		s.loading = false
		s.flushGate()
		s.failCurrent()
	case engine.EventPlay:
		s.store.SetPlaying(true)
	case engine.EventPause:
		// Reloads and stalled-seek recovery flip the engine's pause
		// state without the user asking; those must not rewrite the
		// recorded intent.
		if !s.loading && s.pendingReload == nil && !s.polling && !s.store.SeekLocked() {
			s.store.SetPlaying(false)
		}
	case engine.EventEnd:
		s.handleEnded()
	case engine.EventPlayError:
		s.handlePlayFailure(ev.Err)
	case engine.EventTimeUpdate:
		s.store.SetPositionFromEngine(ev.Position)
		if ev.Duration > 0 && ev.Duration != s.lastDur {
			s.lastDur = ev.Duration
			s.store.SetDuration(ev.Duration)
		}
	}
}

func (s *Session) handleLoaded(ev engine.Event) {
	if pr := s.pendingReload; pr != nil {
		// Completion of a recovery reload from the seek machinery.
		s.pendingReload = nil
		s.loading = false
		s.flushGate()
		if pr.op != s.seekOp {
			return
		}
		s.eng.Seek(pr.target)
		s.store.SetPosition(pr.target)
		s.store.ClearBuffering()
		s.store.UnlockSeek()
		if pr.resume && s.store.IsActivePlayer() {
			if err := s.eng.Play(); err != nil {
				s.handlePlayFailure(err)
			}
		}
		return
	}

	if !s.loading || (ev.URL != "" && ev.URL != s.loadingURL) {
		return
	}
	s.loading = false
	if ev.Duration > 0 {
		s.lastDur = ev.Duration
		s.store.SetDuration(ev.Duration)
	}
	s.store.SetCanSeek(true)

	if s.hasResume {
		target := s.resumeAt
		s.resumeAt = 0
		s.hasResume = false
		if s.settle {
			s.settle = false
			op := s.loadOp
			s.after(s.t.TransferSettle, func() {
				if op != s.loadOp {
					return
				}
				s.eng.Seek(target)
				s.store.SetPosition(target)
				s.maybeAutoplay()
			})
			s.flushGate()
			return
		}
		s.eng.Seek(target)
		s.store.SetPosition(target)
	}

	s.maybeAutoplay()
	s.flushGate()

	if !s.store.Current().Same(s.loaded) {
		// Selection moved on while this load was in flight.
		s.Post(s.handleMediaChange)
	}
}

// maybeAutoplay starts the engine when the recorded intent is to
// play, this device holds the active role, and no start is already
// in flight.
func (s *Session) maybeAutoplay() {
	if !s.store.Status().Playing || !s.store.IsActivePlayer() {
		return
	}
	if s.eng.IsPlaying() || s.eng.IsPendingPlay() {
		return
	}
	if err := s.eng.Play(); err != nil {
		s.handlePlayFailure(err)
	}
}

func (s *Session) flushGate() {
	if s.gate != nil {
		s.gate.Flush()
	}
}

func (s *Session) handleEnded() {
	if s.loaded.Kind != playback.KindTrack {
		s.saveProgress(s.loaded, s.store.Status().Duration, s.store.Status().Duration, true)
	}
	if s.loaded.Kind == playback.KindTrack {
		if _, ok := s.store.Advance(); ok {
			return
		}
	}
	s.store.SetPlaying(false)
}

// failCurrent applies the failure policy for the current item: music
// tracks skip forward when the queue has somewhere to go, everything
// else clears so the listener's position survives for next time.
func (s *Session) failCurrent() {
	if s.loaded.Kind == playback.KindTrack && s.store.QueueLen() > 1 {
		if _, ok := s.store.Advance(); ok {
			return
		}
	}
	s.store.SetPlaying(false)
	s.store.Clear()
}
