// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package playback

import (
	"fmt"
	"strings"
)

// Kind discriminates what sort of media is loaded. A session plays at
// most one kind at a time; setting an item of one kind clears the
// others by construction (see Store).
type Kind string

const (
	KindNone      Kind = "none"
	KindTrack     Kind = "track"
	KindAudiobook Kind = "audiobook"
	KindPodcast   Kind = "podcast"
)

// Item is the identity of one playable thing. The zero value means
// "nothing loaded". Items are replaced wholesale on media change,
// never mutated in place.
type Item struct {
	Kind     Kind    `json:"kind"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	CoverArt string  `json:"coverArt,omitempty"`
	Duration float64 `json:"duration"`

	// HasLocalFile is meaningful for tracks only: false means the
	// server must resolve a fallback stream for us.
	HasLocalFile bool `json:"hasLocalFile,omitempty"`
}

func (it Item) IsZero() bool {
	return it.Kind == "" || it.Kind == KindNone || it.ID == ""
}

// Same reports whether two items are the same logical media, which is
// what load orchestration cares about. Metadata differences don't
// make a new identity.
func (it Item) Same(other Item) bool {
	return it.Kind == other.Kind && it.ID == other.ID
}

func (it Item) String() string {
	if it.IsZero() {
		return "(nothing)"
	}
	if it.Artist != "" {
		return fmt.Sprintf("%s - %s", it.Artist, it.Title)
	}
	return it.Title
}

// EpisodeID builds the composite identifier podcast items carry.
func EpisodeID(podcastID, episodeID string) string {
	return podcastID + ":" + episodeID
}

// SplitEpisodeID undoes EpisodeID. ok is false for non-composite ids.
func SplitEpisodeID(id string) (podcastID, episodeID string, ok bool) {
	podcastID, episodeID, ok = strings.Cut(id, ":")
	if podcastID == "" || episodeID == "" {
		return "", "", false
	}
	return podcastID, episodeID, ok
}
