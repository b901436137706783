// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package remote

// Channel is the signaling transport connecting the devices of one
// session. Reconnection and retry are the channel's problem; the
// coordinator only reacts to what is delivered, and tolerates
// duplicated, dropped, and reordered messages.
//
// Handlers are registered once at startup, before Start is called on
// the owning coordinator, and run on the channel's receive goroutine.
type Channel interface {
	// SendCommand delivers cmd to the session. cmd.To targets one
	// device; empty To reaches every other device.
	SendCommand(cmd Command) error
	// SendState fans a snapshot out to every other device.
	SendState(st State) error
	// SendStop announces that this device is now the active player.
	// Every other device must pause unconditionally on receipt.
	SendStop() error
	// SendStateRequest asks the current active player to broadcast a
	// fresh snapshot. Sent after (re)connecting.
	SendStateRequest() error
	// SendGrantActive hands the active-player role to device to.
	SendGrantActive(to string) error

	OnCommand(func(Command))
	OnStateBroadcast(func(State))
	OnStopPlayback(func(fromDevice string))
	OnBecomeActivePlayer(func())
	OnStateRequest(func(fromDevice string))

	IsConnected() bool
	Close() error
}
