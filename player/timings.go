// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package player

import "time"

// Timings collects the tuned windows of the load/seek machinery.
// Production uses DefaultTimings; tests shrink them. The qualitative
// behavior (large skips bypass the scrub debounce, uncached seeks
// fall back to buffering and polling) does not depend on the values.
type Timings struct {
	// SeekLock is how long engine timeupdates are dropped after an
	// explicit seek, so a stale pre-seek position cannot overwrite
	// the optimistic one.
	SeekLock time.Duration
	// LargeSkip is the jump size from which a seek executes
	// immediately instead of being debounced as a scrub.
	LargeSkip float64
	// ScrubDebounce is the trailing window coalescing progress-bar
	// drags; only the last target in the window is honored.
	ScrubDebounce time.Duration

	// SeekVerify is the wait before comparing the decoder position to
	// the seek target on cached podcast audio.
	SeekVerify time.Duration
	// SeekTolerance is how far the decoder may land from the target
	// before the seek counts as failed.
	SeekTolerance float64
	// UncachedCheck is the wait before testing whether a seek into
	// possibly-uncached audio silently failed.
	UncachedCheck time.Duration
	// SilentFailBoundary: a seek targeting beyond this that leaves
	// the decoder before it is considered silently failed.
	SilentFailBoundary float64
	// CachePoll and CachePollCap bound the wait for the server to
	// finish caching an episode before a stalled seek gives up.
	CachePoll    time.Duration
	CachePollCap int

	// TransferSettle is the pause between loading a transferred track
	// and seeking it; engines reject seeks until the load stabilizes.
	TransferSettle time.Duration

	// ProgressInterval is the cadence of listening-progress upserts
	// while playing.
	ProgressInterval time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		SeekLock:           100 * time.Millisecond,
		LargeSkip:          10,
		ScrubDebounce:      150 * time.Millisecond,
		SeekVerify:         150 * time.Millisecond,
		SeekTolerance:      5,
		UncachedCheck:      time.Second,
		SilentFailBoundary: 30,
		CachePoll:          2 * time.Second,
		CachePollCap:       60,
		TransferSettle:     500 * time.Millisecond,
		ProgressInterval:   30 * time.Second,
	}
}
