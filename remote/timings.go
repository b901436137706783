// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package remote

import "time"

// Timings collects the tuned intervals of the remote layer. Tests
// shrink them; production uses DefaultTimings.
type Timings struct {
	// BroadcastTick is the steady state-snapshot interval while this
	// device is active and playing.
	BroadcastTick time.Duration
	// BroadcastDebounce coalesces play/pause/volume flicker. Track
	// identity changes bypass it.
	BroadcastDebounce time.Duration
	// DevicePrune drops session devices not heard from for this long.
	DevicePrune time.Duration

	// CommandWait bounds how long deferrable commands wait for media
	// to appear before the queue is flushed regardless.
	CommandWait time.Duration
	// CommandPoll is the re-check interval during CommandWait.
	CommandPoll time.Duration
	// PendingPlayTimeout is how long a remote play attempt is
	// presumed in flight before it counts as succeeded.
	PendingPlayTimeout time.Duration

	// SeenWindow is how many recent command IDs the duplicate filter
	// remembers.
	SeenWindow int
}

func DefaultTimings() Timings {
	return Timings{
		BroadcastTick:      time.Second,
		BroadcastDebounce:  500 * time.Millisecond,
		DevicePrune:        90 * time.Second,
		CommandWait:        500 * time.Millisecond,
		CommandPoll:        100 * time.Millisecond,
		PendingPlayTimeout: 3 * time.Second,
		SeenWindow:         128,
	}
}
