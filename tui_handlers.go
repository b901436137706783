// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/chorusfm/chorus/remote"
)

func (ui *Ui) handlePageInput(event *tcell.EventKey) *tcell.EventKey {
	// modals own the keyboard while they're up
	if ui.selectDeviceWidget.visible || ui.helpWidget.visible || ui.blockedPrompt != nil {
		return event
	}

	switch event.Rune() {
	case '1':
		ui.ShowPage(PagePlayer)

	case '2':
		ui.ShowPage(PageLog)

	case '?':
		ui.ShowHelp()

	case 'Q':
		ui.Quit()

	case ' ', 'p':
		// toggle playing/pause, here or on the active device
		ui.handleTogglePlay()

	case '>':
		ui.handleNext()

	case '<':
		ui.handlePrev()

	case '.':
		// >>
		ui.handleSeekBy(10)

	case ',':
		// <<
		ui.handleSeekBy(-10)

	case '-':
		// volume-
		ui.handleVolumeBy(-5)

	case '+', '=':
		// volume+
		ui.handleVolumeBy(5)

	case 'm':
		// mute is local; it never travels
		if err := ui.session.ToggleMute(); err != nil {
			ui.logger.PrintError("handlePageInput: ToggleMute", err)
		}

	case 'a':
		ui.handleBecomeActive()

	case 't':
		ui.ShowSelectDevice()

	default:
		return event
	}

	return nil
}

func (ui *Ui) ShowPage(name string) {
	ui.pages.SwitchToPage(name)
	ui.menuWidget.SetActivePage(name)
	_, prim := ui.pages.GetFrontPage()
	ui.app.SetFocus(prim)
}

func (ui *Ui) Quit() {
	// teardown happens in main once the tview loop unwinds
	ui.app.Stop()
}

// handleTogglePlay acts locally when this device is the active
// player, otherwise it remote-controls whoever is.
func (ui *Ui) handleTogglePlay() {
	if ui.isLocalControl() {
		if err := ui.session.TogglePlay(); err != nil {
			ui.logger.PrintError("handleTogglePlay", err)
		}
		return
	}
	rs, ok := ui.remoteSnapshot()
	kind := remote.CmdPlay
	if ok && rs.Playing {
		kind = remote.CmdPause
	}
	ui.sendRemote(kind, nil)
}

func (ui *Ui) handleNext() {
	if ui.isLocalControl() {
		if err := ui.session.Next(); err != nil {
			ui.logger.PrintError("handleNext", err)
		}
		return
	}
	ui.sendRemote(remote.CmdNext, nil)
}

func (ui *Ui) handlePrev() {
	if ui.isLocalControl() {
		if err := ui.session.Prev(); err != nil {
			ui.logger.PrintError("handlePrev", err)
		}
		return
	}
	ui.sendRemote(remote.CmdPrev, nil)
}

func (ui *Ui) handleSeekBy(delta float64) {
	if ui.isLocalControl() {
		if err := ui.session.SeekBy(delta); err != nil {
			ui.logger.PrintError("handleSeekBy", err)
		}
		return
	}
	rs, ok := ui.remoteSnapshot()
	if !ok {
		return
	}
	target := rs.Position + delta
	if target < 0 {
		target = 0
	}
	ui.sendRemote(remote.CmdSeek, func(cmd *remote.Command) {
		cmd.Seek = target
	})
}

func (ui *Ui) handleVolumeBy(delta int) {
	if ui.isLocalControl() {
		if err := ui.session.AdjustVolume(delta); err != nil {
			ui.logger.PrintError("handleVolumeBy", err)
		}
		return
	}
	rs, ok := ui.remoteSnapshot()
	if !ok {
		return
	}
	v := rs.Volume + delta
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	ui.sendRemote(remote.CmdVolume, func(cmd *remote.Command) {
		cmd.Volume = v
	})
}

func (ui *Ui) handleBecomeActive() {
	if ui.coordinator == nil || ui.store.IsActivePlayer() {
		return
	}
	ui.session.Do(ui.coordinator.BecomeActivePlayer)
}

// isLocalControl: act on the local session when active, or when there
// is no session fabric at all.
func (ui *Ui) isLocalControl() bool {
	return ui.coordinator == nil || ui.store.IsActivePlayer()
}

func (ui *Ui) sendRemote(kind remote.CommandKind, mutate func(*remote.Command)) {
	if ui.coordinator == nil {
		return
	}
	var err error
	ui.session.Do(func() { err = ui.coordinator.SendCommand(kind, mutate) })
	if err != nil {
		ui.logger.PrintError("sendRemote "+string(kind), err)
	}
}
