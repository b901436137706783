// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package playback

// Status is the playback-progress slice of the store. Playing is the
// session's intent (what the user asked for, what controllers see),
// which the engine follows; on a passive device it can be true while
// no local audio plays.
type Status struct {
	Playing   bool
	Position  float64
	Duration  float64
	Buffering bool

	// CanSeek is false while a podcast's audio is still downloading
	// server-side and raw seeks may land in missing bytes.
	CanSeek bool

	// TargetSeek records where a stalled seek is trying to get to,
	// valid only while HasTarget. Cleared when the seek completes or
	// is superseded.
	TargetSeek float64
	HasTarget  bool

	// DownloadPct is the server-reported cache progress for podcast
	// episodes, negative when unknown.
	DownloadPct float64
}

// Change tags store mutations for subscribers.
type Change int

const (
	// ChangeMedia: current item and/or queue replaced.
	ChangeMedia Change = iota
	// ChangeStatus: playing/position/duration/buffering moved.
	ChangeStatus
	// ChangeVolume: volume or mute moved.
	ChangeVolume
	// ChangeRole: active-player role flipped.
	ChangeRole
)

func (c Change) String() string {
	switch c {
	case ChangeMedia:
		return "media"
	case ChangeStatus:
		return "status"
	case ChangeVolume:
		return "volume"
	case ChangeRole:
		return "role"
	}
	return "unknown"
}
