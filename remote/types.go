// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package remote keeps the devices of one listening session agreed on
// a single active player. It defines the wire types exchanged over
// the signaling channel, the Coordinator that arbitrates the
// active-player role and broadcasts state, and the Runner that turns
// received commands into local player calls.
package remote

import (
	"time"

	"github.com/google/uuid"

	"github.com/chorusfm/chorus/playback"
)

// CommandKind names a remote command. Values travel on the wire.
type CommandKind string

const (
	CmdPlay      CommandKind = "play"
	CmdPause     CommandKind = "pause"
	CmdNext      CommandKind = "next"
	CmdPrev      CommandKind = "prev"
	CmdSeek      CommandKind = "seek"
	CmdVolume    CommandKind = "setVolume"
	CmdPlayTrack CommandKind = "playTrack"
	CmdSetQueue  CommandKind = "setQueue"
	CmdTransfer  CommandKind = "transferPlayback"
)

// Command is one remote instruction. Commands are immutable once
// created; payload fields beyond Kind are set per kind. The channel
// may deliver a command twice or out of order after a reconnect, so
// every command carries a unique ID for receiver-side dedup.
type Command struct {
	ID     string      `json:"commandId"`
	Kind   CommandKind `json:"command"`
	From   string      `json:"fromDeviceId"`
	To     string      `json:"toDeviceId,omitempty"`
	SentAt int64       `json:"sentAt"`

	Seek     float64        `json:"seek,omitempty"`
	Volume   int            `json:"volume,omitempty"`
	Track    *TrackRef      `json:"track,omitempty"`
	Queue    []TrackRef     `json:"queue,omitempty"`
	Index    int            `json:"index,omitempty"`
	Transfer *TransferState `json:"transfer,omitempty"`
}

// NewCommand stamps identity and time onto a command.
func NewCommand(kind CommandKind, from string) Command {
	return Command{
		ID:     uuid.NewString(),
		Kind:   kind,
		From:   from,
		SentAt: NowMillis(),
	}
}

// TrackRef is the lightweight media projection commands and state
// broadcasts carry: enough to load and display an item, nothing more.
type TrackRef struct {
	Kind         playback.Kind `json:"kind"`
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Artist       string        `json:"artist,omitempty"`
	Album        string        `json:"album,omitempty"`
	CoverArt     string        `json:"coverArt,omitempty"`
	Duration     float64       `json:"duration"`
	HasLocalFile bool          `json:"hasLocalFile,omitempty"`
}

func RefOf(it playback.Item) TrackRef {
	return TrackRef{
		Kind:         it.Kind,
		ID:           it.ID,
		Title:        it.Title,
		Artist:       it.Artist,
		Album:        it.Album,
		CoverArt:     it.CoverArt,
		Duration:     it.Duration,
		HasLocalFile: it.HasLocalFile,
	}
}

func RefsOf(items []playback.Item) []TrackRef {
	refs := make([]TrackRef, len(items))
	for i, it := range items {
		refs[i] = RefOf(it)
	}
	return refs
}

func (r TrackRef) Item() playback.Item {
	return playback.Item{
		Kind:         r.Kind,
		ID:           r.ID,
		Title:        r.Title,
		Artist:       r.Artist,
		Album:        r.Album,
		CoverArt:     r.CoverArt,
		Duration:     r.Duration,
		HasLocalFile: r.HasLocalFile,
	}
}

func Items(refs []TrackRef) []playback.Item {
	items := make([]playback.Item, len(refs))
	for i, r := range refs {
		items[i] = r.Item()
	}
	return items
}

// TransferState is the payload of a transferPlayback command: the
// full playback context the target device adopts.
type TransferState struct {
	Track    TrackRef   `json:"track"`
	Queue    []TrackRef `json:"queue,omitempty"`
	Index    int        `json:"index,omitempty"`
	Position float64    `json:"position"`
	Volume   int        `json:"volume"`
	Playing  bool       `json:"playing"`
}

// State is the active player's broadcast snapshot. Snapshots are
// idempotent (last received wins); passive devices render them
// read-only.
type State struct {
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName,omitempty"`
	Playing    bool      `json:"isPlaying"`
	Track      *TrackRef `json:"currentTrack,omitempty"`
	Position   float64   `json:"currentTime"`
	Volume     int       `json:"volume"`
	SentAt     int64     `json:"sentAt"`
}

func NowMillis() int64 { return time.Now().UnixMilli() }
