// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/remote"
)

// columns: playing marker, title, artist, duration
const queueDataColumns = 4
const playingIcon = "▶"

// data for rendering queue table
type queueData struct {
	tview.TableContentReadOnly

	// our copy of the queue
	items []playback.Item
	// row of the item currently loaded in the player
	playingIndex int
}

var _ tview.TableContent = (*queueData)(nil)

type QueuePage struct {
	Root *tview.Flex

	queueList *tview.Table
	queueData queueData

	itemInfo *tview.TextView
	devices  *tview.TextView

	// external refs
	ui     *Ui
	logger logger.LoggerInterface

	itemInfoTemplate *template.Template
}

func (ui *Ui) createQueuePage() *QueuePage {
	itemInfoTemplate, err := template.New("item info").Parse(itemInfoTemplateString)
	if err != nil {
		ui.logger.PrintError("createQueuePage", err)
	}
	queuePage := QueuePage{
		ui:               ui,
		logger:           ui.logger,
		itemInfoTemplate: itemInfoTemplate,
	}

	// main table
	queuePage.queueList = tview.NewTable().
		SetSelectable(true, false). // rows selectable
		SetSelectedStyle(tcell.StyleDefault.Background(tcell.ColorLightGray).Foreground(tcell.ColorBlack))
	queuePage.queueList.Box.
		SetTitle(" queue ").
		SetTitleAlign(tview.AlignLeft).
		SetBorder(true)
	queuePage.queueList.SetSelectedFunc(func(row, column int) {
		queuePage.handlePlaySelected(row)
	})

	// Item info
	queuePage.itemInfo = tview.NewTextView()
	queuePage.itemInfo.SetDynamicColors(true).SetScrollable(true).SetBorder(true).SetTitle(" item ")

	// session peers
	queuePage.devices = tview.NewTextView()
	queuePage.devices.SetDynamicColors(true).SetBorder(true).SetTitle(" devices ")

	queuePage.queueList.SetSelectionChangedFunc(queuePage.changeSelection)

	// flex wrapper
	infoColumn := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(queuePage.itemInfo, 0, 2, false).
		AddItem(queuePage.devices, 0, 1, false)
	queuePage.Root = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(queuePage.queueList, 0, 2, true).
		AddItem(infoColumn, 0, 1, false)

	queuePage.queueData = queueData{playingIndex: -1}

	return &queuePage
}

func (q *QueuePage) changeSelection(row, column int) {
	q.itemInfo.Clear()
	if row >= len(q.queueData.items) || row < 0 || column < 0 {
		return
	}
	item := q.queueData.items[row]
	_ = q.itemInfoTemplate.Execute(q.itemInfo, item)
}

func (q *QueuePage) handlePlaySelected(row int) {
	if row < 0 || row >= len(q.queueData.items) {
		return
	}
	if err := q.ui.session.PlayQueue(q.queueData.items, row); err != nil {
		q.logger.PrintError("handlePlaySelected", err)
	}
}

// UpdateQueue re-reads the queue from the playback store, which is
// the authoritative source for it.
func (q *QueuePage) UpdateQueue() {
	queueWasEmpty := len(q.queueData.items) == 0

	items, index := q.ui.store.Queue()
	q.queueData.items = items
	q.queueData.playingIndex = index
	q.queueList.SetContent(&q.queueData)

	// by default we're scrolled down after initially adding rows, fix this
	if queueWasEmpty {
		q.queueList.ScrollToBeginning()
	}

	r, c := q.queueList.GetSelection()
	q.changeSelection(r, c)
}

// UpdateNowPlaying moves the playing marker and refreshes the info
// pane for the selected row.
func (q *QueuePage) UpdateNowPlaying() {
	_, index := q.ui.store.Queue()
	if index != q.queueData.playingIndex {
		q.queueData.playingIndex = index
		q.queueList.SetContent(&q.queueData)
	}

	r, c := q.queueList.GetSelection()
	q.changeSelection(r, c)
}

func (q *QueuePage) UpdateDevices() {
	q.devices.Clear()
	if q.ui.coordinator == nil {
		fmt.Fprint(q.devices, "[gray]standalone[-]")
		return
	}

	var peers []remote.DeviceInfo
	q.ui.session.Do(func() {
		peers = q.ui.coordinator.Devices()
	})

	fmt.Fprintf(q.devices, "[::b]%s[::-] [gray](this device)[-]\n", tview.Escape(q.ui.deviceName))
	for _, d := range peers {
		if d.ID == q.ui.deviceID {
			continue
		}
		name := d.Name
		if name == "" {
			name = d.ID
		}
		status := "idle"
		if d.State.Playing {
			status = "[green]playing[-]"
		}
		fmt.Fprintf(q.devices, "%s %s, seen %s\n", tview.Escape(name), status, humanize.Time(d.LastSeen))
	}
}

// queueData methods, used by tview to lazily render the table
func (q *queueData) GetCell(row, column int) *tview.TableCell {
	if row >= len(q.items) || column >= queueDataColumns || row < 0 || column < 0 {
		return nil
	}
	item := q.items[row]

	switch column {
	case 0: // playing marker
		text := " "
		color := tcell.ColorDefault
		if row == q.playingIndex {
			text = playingIcon
			color = tcell.ColorGreen
		}
		return &tview.TableCell{
			Text:        text,
			Color:       color,
			Expansion:   0,
			MaxWidth:    1,
			Transparent: true,
		}
	case 1: // title
		return &tview.TableCell{
			Text:        tview.Escape(item.Title),
			Expansion:   1,
			Transparent: true,
		}
	case 2: // artist
		return &tview.TableCell{
			Text:        tview.Escape(item.Artist),
			Expansion:   1,
			Transparent: true,
		}
	case 3: // duration
		min, sec := iSecondsToMinAndSec(int(item.Duration))
		text := fmt.Sprintf("%3d:%02d", min, sec)
		return &tview.TableCell{
			Text:        text,
			Align:       tview.AlignRight,
			Expansion:   0,
			MaxWidth:    6,
			Transparent: true,
		}
	}

	return nil
}

// Return the total number of rows in the table.
func (q *queueData) GetRowCount() int {
	return len(q.items)
}

// Return the total number of columns in the table.
func (q *queueData) GetColumnCount() int {
	return queueDataColumns
}

var itemInfoTemplateString = `[blue::b]Title:[-:-:-:-] [green::i]{{.Title}}[-:-:-:-]
[blue::b]Artist:[-:-:-:-] [::i]{{.Artist}}[-:-:-:-]
[blue::b]Album:[-:-:-:-] [::i]{{.Album}}[-:-:-:-]
[blue::b]Kind:[-:-:-:-] [::i]{{.Kind}}[-:-:-:-]`
