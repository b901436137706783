// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package player

import (
	"errors"

	"github.com/chorusfm/chorus/engine"
	"github.com/chorusfm/chorus/remote"
)

// localPlayer adapts the session to remote.LocalPlayer. The runner
// and coordinator already execute on the loop goroutine, so these
// call the loop-internal methods directly instead of posting.
type localPlayer struct {
	s *Session
}

func (l localPlayer) Play() error  { return l.s.playNow() }
func (l localPlayer) Pause() error { l.s.pauseNow(); return nil }
func (l localPlayer) Next() error  { l.s.nextNow(); return nil }
func (l localPlayer) Prev() error  { l.s.prevNow(); return nil }

func (l localPlayer) Seek(seconds float64) error {
	l.s.seekNow(seconds)
	return nil
}

func (l localPlayer) SetVolume(v int) error {
	l.s.setVolumeNow(v)
	return nil
}

func (l localPlayer) SetQueue(queue []remote.TrackRef, index int) error {
	l.s.store.SetQueue(remote.Items(queue), index)
	return nil
}

func (l localPlayer) PlayTrack(track remote.TrackRef, queue []remote.TrackRef, index int) error {
	if len(queue) > 0 {
		l.s.store.SetQueue(remote.Items(queue), index)
	} else {
		l.s.store.SetItem(track.Item())
	}
	l.s.store.SetPlaying(true)
	return nil
}

func (l localPlayer) ApplyTransfer(t remote.TransferState) error {
	l.s.applyTransfer(t)
	return nil
}

func (l localPlayer) HandleStopSignal() { l.s.handleStopSignal() }
func (l localPlayer) IsLoading() bool   { return l.s.loading }
func (l localPlayer) HasMedia() bool    { return !l.s.store.Current().IsZero() }

// playNow starts or resumes the engine. Only the active player makes
// sound; on a passive device the intent is recorded and nothing else
// happens, which is what lets a later grantActive pick it up.
func (s *Session) playNow() error {
	s.store.SetPlaying(true)
	if !s.store.IsActivePlayer() {
		return nil
	}
	if s.loading {
		// Load completion applies the recorded intent.
		return nil
	}
	if s.store.Current().IsZero() {
		return nil
	}
	if err := s.eng.Play(); err != nil {
		s.handlePlayFailure(err)
		return err
	}
	return nil
}

func (s *Session) pauseNow() {
	s.store.SetPlaying(false)
	s.eng.Pause()
	s.reportProgress(false)
}

func (s *Session) toggleNow() {
	if s.store.Status().Playing {
		s.pauseNow()
	} else {
		s.playNow()
	}
}

func (s *Session) nextNow() {
	if _, ok := s.store.Advance(); !ok {
		s.log.Print("player: next at end of queue")
	}
}

func (s *Session) prevNow() {
	if _, ok := s.store.Retreat(); !ok {
		// Restart the current item instead.
		s.seekNow(0)
	}
}

func (s *Session) setVolumeNow(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	s.store.SetVolume(v)
	s.eng.SetVolume(v)
}

// applyTransfer adopts a playback context handed over by another
// device. The position seek waits for the load to settle; engines
// reject seeks issued in the same breath as a load.
func (s *Session) applyTransfer(t remote.TransferState) {
	s.setVolumeNow(t.Volume)
	s.resumeAt = t.Position
	s.hasResume = true
	s.settle = true
	if len(t.Queue) > 0 {
		s.store.SetQueue(remote.Items(t.Queue), t.Index)
	} else {
		s.store.SetItem(t.Track.Item())
	}
	s.store.SetPlaying(t.Playing)
}

// handleStopSignal pauses and demotes in a single loop turn. It is
// obeyed unconditionally; the sender is already playing and at most
// one device may.
func (s *Session) handleStopSignal() {
	s.eng.Pause()
	s.store.SetPlaying(false)
	s.store.SetActivePlayer(false)
	s.reportProgress(false)
}

// handlePlayFailure routes a refused play. Output-policy rejections
// become a prompt; anything else falls through the same failure path
// as a broken load.
func (s *Session) handlePlayFailure(err error) {
	if errors.Is(err, engine.ErrPlaybackBlocked) {
		s.log.Printf("player: output blocked: %v", err)
		if s.gate != nil {
			s.gate.HandleBlockedPlay()
		}
		return
	}
	s.log.PrintError("play", err)
	s.failCurrent()
}
