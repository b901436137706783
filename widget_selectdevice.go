package main

import (
	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/chorusfm/chorus/remote"
)

type DeviceSelectWidget struct {
	Root    *tview.Flex
	ui      *Ui
	list    *tview.List
	visible bool

	// peer IDs by list index
	ids []string
}

// createDeviceSelectWidget creates the transfer-target picker and
// sets up its key bindings.
func (ui *Ui) createDeviceSelectWidget() (m *DeviceSelectWidget) {
	m = &DeviceSelectWidget{
		ui: ui,
	}

	m.list = tview.NewList().
		ShowSecondaryText(true).
		SetSelectedFunc(func(index int, _, _ string, _ rune) {
			m.handleTransfer(index)
		})

	m.Root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(m.list, 0, 1, true)

	m.Root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyESC {
			ui.CloseSelectDevice()
			return nil
		}
		return event
	})

	m.Root.Box.SetBorder(true).SetTitle(" Transfer playback to ")

	return
}

// Refresh repopulates the list from the coordinator's device
// registry. Our own device never shows up as a target.
func (m *DeviceSelectWidget) Refresh() {
	m.list.Clear()
	m.ids = m.ids[:0]

	if m.ui.coordinator == nil {
		return
	}

	var peers []remote.DeviceInfo
	m.ui.session.Do(func() {
		peers = m.ui.coordinator.Devices()
	})

	for _, d := range peers {
		if d.ID == m.ui.deviceID {
			continue
		}
		name := d.Name
		if name == "" {
			name = d.ID
		}
		status := "idle"
		if d.State.Playing {
			status = "playing"
		}
		secondary := status + ", seen " + humanize.Time(d.LastSeen)
		m.list.AddItem(name, secondary, 0, nil)
		m.ids = append(m.ids, d.ID)
	}

	if len(m.ids) == 0 {
		m.list.AddItem("(no other devices in this session)", "", 0, nil)
	}
}

func (m *DeviceSelectWidget) handleTransfer(index int) {
	if index < 0 || index >= len(m.ids) {
		m.ui.CloseSelectDevice()
		return
	}
	target := m.ids[index]
	m.ui.session.Post(func() {
		if err := m.ui.coordinator.TransferTo(target); err != nil {
			m.ui.logger.PrintError("TransferTo", err)
		}
	})
	m.ui.CloseSelectDevice()
}
