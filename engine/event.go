// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package engine

type EventType int

const (
	// EventLoad: the url in Event.URL finished loading; Duration is
	// known.
	EventLoad EventType = iota
	// EventLoadError: loading Event.URL failed; Err says why.
	EventLoadError
	EventPlay
	EventPause
	// EventEnd: the loaded media played to its end.
	EventEnd
	// EventPlayError: a play call failed after the fact. Err wrapping
	// ErrPlaybackBlocked means an output-policy rejection.
	EventPlayError
	// EventTimeUpdate: the decoder position moved; Position (and
	// sometimes Duration) are set. Engines may drop these under
	// backpressure, they are advisory.
	EventTimeUpdate
)

func (t EventType) String() string {
	switch t {
	case EventLoad:
		return "load"
	case EventLoadError:
		return "loaderror"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnd:
		return "end"
	case EventPlayError:
		return "playerror"
	case EventTimeUpdate:
		return "timeupdate"
	}
	return "unknown"
}

// Event is one engine notification. Fields beyond Type are set per
// type, see the EventType docs.
type Event struct {
	Type     EventType
	URL      string
	Position float64
	Duration float64
	Err      error
}
