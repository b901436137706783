// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/remote"
)

// registerCallbacks bridges the session loop and the tview goroutine.
// Loop-side callbacks only push into buffered channels; guiEventLoop
// turns them into draws. The session loop must never wait on tview,
// or a UI key posting into the loop would deadlock.
func (ui *Ui) registerCallbacks() {
	ui.store.Subscribe(func(c playback.Change) {
		select {
		case ui.storeEvents <- c:
		default:
			// the redraw for a queued event covers this one too
		}
	})

	ui.session.Post(func() {
		ui.runner.OnBlockedPlay(func(bp remote.BlockedPlay) {
			select {
			case ui.blockedEvents <- bp:
			default:
			}
		})
		if ui.coordinator != nil {
			ui.coordinator.OnRemoteChange(func() {
				select {
				case ui.remoteEvents <- struct{}{}:
				default:
				}
			})
		}
	})
}

// handle ui updates
func (ui *Ui) guiEventLoop() {
	for {
		select {
		case msg := <-ui.logger.Prints:
			// handle log page output
			ui.logPage.Print(msg)

		case c := <-ui.storeEvents:
			// coalesce a burst of position updates into one draw
			media := c == playback.ChangeMedia
		drain:
			for {
				select {
				case c2 := <-ui.storeEvents:
					media = media || c2 == playback.ChangeMedia
				default:
					break drain
				}
			}
			ui.app.QueueUpdateDraw(func() {
				ui.updateStatusBars()
				ui.queuePage.UpdateNowPlaying()
				if media {
					ui.queuePage.UpdateQueue()
				}
			})

		case <-ui.remoteEvents:
			ui.app.QueueUpdateDraw(func() {
				ui.queuePage.UpdateDevices()
				ui.queuePage.UpdateNowPlaying()
				ui.updateStatusBars()
				if ui.selectDeviceWidget.visible {
					ui.selectDeviceWidget.Refresh()
				}
			})

		case bp := <-ui.blockedEvents:
			ui.app.QueueUpdateDraw(func() {
				ui.showBlockedPrompt(bp)
			})
		}
	}
}

// updateStatusBars rewrites the two top-bar text views from the
// store. Passive devices show the remote broadcast instead of the
// silent local engine.
func (ui *Ui) updateStatusBars() {
	st := ui.store.Status()
	cur := ui.store.Current()
	volume := ui.store.Volume()
	playing := st.Playing
	position, duration := st.Position, st.Duration

	role := "[gray]passive[-]"
	if ui.store.IsActivePlayer() {
		role = "[green]active[-]"
	}
	if rs, ok := ui.remoteSnapshot(); ok {
		playing = rs.Playing
		position = rs.Position
		volume = rs.Volume
		if rs.Track != nil {
			it := rs.Track.Item()
			cur = it
			duration = it.Duration
		}
		role = "[gray]passive[-] (listening on " + rs.DeviceName + ")"
	}

	var statusText string
	switch {
	case cur.IsZero():
		statusText = "[red::b]Stopped[::-]"
	case st.Buffering:
		statusText = "[yellow::b]Buffering[::-]" + formatItemForStatusBar(cur)
	case playing:
		statusText = "[green::b]Playing[::-]" + formatItemForStatusBar(cur)
	default:
		statusText = "[yellow::b]Paused[::-]" + formatItemForStatusBar(cur)
	}
	ui.startStopStatus.SetText(statusText + "  " + role)
	ui.playerStatus.SetText(formatPlayerStatus(ui.store.Muted(), volume, position, duration))
}

// remoteSnapshot returns the active peer's broadcast when this device
// is passive and one was heard.
func (ui *Ui) remoteSnapshot() (remote.State, bool) {
	if ui.coordinator == nil {
		return remote.State{}, false
	}
	var rs remote.State
	var ok bool
	ui.session.Do(func() { rs, ok = ui.coordinator.RemoteState() })
	return rs, ok
}
