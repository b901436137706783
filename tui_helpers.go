// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"math"

	"github.com/rivo/tview"

	"github.com/chorusfm/chorus/playback"
)

func makeModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)
}

func formatPlayerStatus(muted bool, volume int, position, duration float64) string {
	if position < 0 {
		position = 0
	}

	if duration < 0 {
		duration = 0
	}

	positionMin, positionSec := secondsToMinAndSec(position)
	durationMin, durationSec := secondsToMinAndSec(duration)

	st := "( )"
	if muted {
		st = "[red](M)[-]"
	}

	return fmt.Sprintf("%s[%d%%][::b][%02d:%02d/%02d:%02d]", st, volume, positionMin, positionSec, durationMin, durationSec)
}

func formatItemForStatusBar(item playback.Item) (text string) {
	if item.IsZero() {
		return
	}
	if item.Title != "" {
		text += "[::-] [white]" + tview.Escape(item.Title)
	}
	if item.Artist != "" {
		text += " [gray]by [white]" + tview.Escape(item.Artist)
	}
	return
}

func secondsToMinAndSec(seconds float64) (int, int) {
	minutes := math.Floor(seconds / 60)
	remainingSeconds := int(seconds) % 60
	return int(minutes), remainingSeconds
}

func iSecondsToMinAndSec(seconds int) (int, int) {
	minutes := seconds / 60
	remainingSeconds := seconds % 60
	return minutes, remainingSeconds
}
