// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package engine defines the contract between the player session and
// an audio backend. Exactly one Engine instance exists per process;
// the session owns it and is the only writer. Implementations live
// elsewhere (mpvplayer for production, enginetest for tests).
package engine

import "errors"

// ErrPlaybackBlocked marks a play rejection caused by the platform's
// autoplay/output policy rather than by bad media. Callers recover by
// asking the user to unlock audio, not by skipping the item.
var ErrPlaybackBlocked = errors.New("playback blocked by output policy")

// Engine wraps one audio backend instance.
//
// Load is asynchronous: it starts fetching/decoding url and returns;
// completion arrives as a Load or LoadError event carrying the same
// url. Seek and Play may also complete asynchronously depending on
// the backend. Engines report, they never decide: queue advancement,
// role checks, and retry policy belong to the session.
type Engine interface {
	// Load begins loading url, replacing whatever is loaded. format
	// is an optional container/codec hint backends may ignore.
	Load(url string, autoplay bool, format string) error
	Play() error
	Pause() error
	Stop() error
	Seek(seconds float64) error
	// Reload re-opens the current url from scratch. Used when a seek
	// landed in bytes the server hadn't finished writing.
	Reload() error

	// CurrentTime is the position the engine reports for display.
	CurrentTime() float64
	// ActualCurrentTime is the true decoder position. After a seek
	// into missing data the display position may show the target
	// while the decoder is still stuck before it; comparing the two
	// is how failed seeks are detected.
	ActualCurrentTime() float64
	Duration() float64

	IsPlaying() bool
	IsLoading() bool
	// IsPendingPlay reports a play that was requested but not yet
	// confirmed by a Play event.
	IsPendingPlay() bool

	SetVolume(v int) error
	SetMuted(m bool) error

	// Events returns the engine's event stream. The channel is owned
	// by the engine and closed by Close.
	Events() <-chan Event

	Close()
}
