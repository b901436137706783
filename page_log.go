// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"strings"
	"time"

	"github.com/rivo/tview"
)

// logLimit caps the log page so a chatty session (seek polling, relay
// reconnects) doesn't grow it forever.
const logLimit = 100

type LogPage struct {
	Root *tview.Flex

	lines *tview.List

	// external refs
	ui *Ui
}

func (ui *Ui) createLogPage() *LogPage {
	logPage := LogPage{
		ui: ui,
	}

	logPage.lines = tview.NewList().ShowSecondaryText(false)

	logPage.Root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(logPage.lines, 0, 1, true)

	return &logPage
}

// Print prepends a timestamped line; errors from the logger's
// Error(source) convention show up red. Called from the gui event
// loop goroutine, hence the queued draw.
func (l *LogPage) Print(line string) {
	l.ui.app.QueueUpdateDraw(func() {
		entry := time.Now().Local().Format("(15:04:05) ")
		if strings.HasPrefix(line, "Error(") {
			entry += "[red]" + tview.Escape(line) + "[-]"
		} else {
			entry += tview.Escape(line)
		}
		l.lines.InsertItem(0, entry, "", 0, nil)

		for l.lines.GetItemCount() > logLimit {
			l.lines.RemoveItem(-1)
		}
	})
}
