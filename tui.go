// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/player"
	"github.com/chorusfm/chorus/remote"
)

// struct contains all the updatable elements of the Ui
type Ui struct {
	app   *tview.Application
	pages *tview.Pages

	// top bar
	startStopStatus *tview.TextView
	playerStatus    *tview.TextView

	// bottom bar
	menuWidget *MenuWidget

	// player page
	queuePage *QueuePage

	// log page
	logPage *LogPage

	// modals
	messageBox         *tview.Modal
	blockedModal       *tview.Modal
	helpModal          tview.Primitive
	helpWidget         *HelpWidget
	selectDeviceModal  tview.Primitive
	selectDeviceWidget *DeviceSelectWidget

	// blocked-play prompt being shown, if any
	blockedPrompt *remote.BlockedPlay

	storeEvents   chan playback.Change
	remoteEvents  chan struct{}
	blockedEvents chan remote.BlockedPlay

	store       *playback.Store
	session     *player.Session
	runner      *remote.Runner
	coordinator *remote.Coordinator // nil when no relay is configured
	logger      *logger.Logger

	deviceID   string
	deviceName string
}

const (
	// page identifiers (use these instead of hardcoding page names for showing/hiding)
	PagePlayer = "player"
	PageLog    = "log"

	PageMessageBox   = "messageBox"
	PageHelpBox      = "helpBox"
	PageSelectDevice = "selectDevice"
	PageBlockedPlay  = "blockedPlay"
)

func InitTui(store *playback.Store,
	session *player.Session,
	runner *remote.Runner,
	coordinator *remote.Coordinator,
	logger *logger.Logger,
	deviceID, deviceName string) (ui *Ui) {
	ui = &Ui{
		storeEvents:   make(chan playback.Change, 64),
		remoteEvents:  make(chan struct{}, 4),
		blockedEvents: make(chan remote.BlockedPlay, 1),

		store:       store,
		session:     session,
		runner:      runner,
		coordinator: coordinator,
		logger:      logger,
		deviceID:    deviceID,
		deviceName:  deviceName,
	}

	ui.app = tview.NewApplication()
	ui.pages = tview.NewPages()

	// status text at the top
	statusLeft := fmt.Sprintf("[::b]%s[::-] v%s", Name, Version)
	ui.startStopStatus = tview.NewTextView().SetText(statusLeft).
		SetTextAlign(tview.AlignLeft).
		SetDynamicColors(true).
		SetScrollable(false)
	ui.startStopStatus.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		return action, nil
	})

	statusRight := formatPlayerStatus(false, 100, 0, 0)
	ui.playerStatus = tview.NewTextView().SetText(statusRight).
		SetTextAlign(tview.AlignRight).
		SetDynamicColors(true).
		SetScrollable(false)

	ui.menuWidget = ui.createMenuWidget()
	ui.helpWidget = ui.createHelpWidget()
	ui.selectDeviceWidget = ui.createDeviceSelectWidget()

	// message box for small notes
	ui.messageBox = tview.NewModal().
		SetText("hi there").
		SetBackgroundColor(tcell.ColorBlack)
	ui.messageBox.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		ui.pages.HidePage(PageMessageBox)
		return event
	})

	// prompt shown when the platform refused to start audio output
	ui.blockedModal = tview.NewModal().
		SetBackgroundColor(tcell.ColorBlack).
		AddButtons([]string{"Play here", "Dismiss"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			ui.resolveBlockedPrompt(buttonIndex == 0)
		})

	ui.selectDeviceModal = makeModal(ui.selectDeviceWidget.Root, 60, 12)

	// help box modal
	ui.helpModal = makeModal(ui.helpWidget.Root, 80, 30)
	ui.helpWidget.Root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Belts and suspenders. After the dialog is shown, this function will
		// _always_ be called. Therefore, check to ensure it's actually visible
		// before triggering on events. Also, don't close on every key, but only
		// ESC, like the help text says.
		if ui.helpWidget.visible && (event.Key() == tcell.KeyEscape) {
			ui.CloseHelp()
		}
		return event
	})

	// top bar: status text
	topBarFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(ui.startStopStatus, 0, 1, false).
		AddItem(ui.playerStatus, 24, 0, false)

	ui.queuePage = ui.createQueuePage()
	ui.logPage = ui.createLogPage()

	ui.pages.AddPage(PagePlayer, ui.queuePage.Root, true, true).
		AddPage(PageLog, ui.logPage.Root, true, false).
		AddPage(PageSelectDevice, ui.selectDeviceModal, true, false).
		AddPage(PageMessageBox, ui.messageBox, true, false).
		AddPage(PageBlockedPlay, ui.blockedModal, true, false).
		AddPage(PageHelpBox, ui.helpModal, true, false)

	rootFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topBarFlex, 1, 0, false).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.menuWidget.Root, 1, 0, false)

	// add main input handler
	rootFlex.SetInputCapture(ui.handlePageInput)

	ui.app.SetRoot(rootFlex, true).
		SetFocus(rootFlex).
		EnableMouse(true)

	return ui
}

func (ui *Ui) Run() error {
	ui.registerCallbacks()

	// run gui event handler
	go ui.guiEventLoop()

	// gui main loop (blocking)
	return ui.app.Run()
}

func (ui *Ui) ShowHelp() {
	activePage := ui.menuWidget.GetActivePage()
	ui.helpWidget.RenderHelp(activePage)

	ui.pages.ShowPage(PageHelpBox)
	ui.pages.SendToFront(PageHelpBox)
	ui.app.SetFocus(ui.helpModal)
	ui.helpWidget.visible = true
}

func (ui *Ui) CloseHelp() {
	ui.helpWidget.visible = false
	ui.pages.HidePage(PageHelpBox)
}

func (ui *Ui) ShowSelectDevice() {
	if ui.coordinator == nil {
		ui.showMessageBox("No relay configured; nowhere to transfer to.")
		return
	}
	ui.selectDeviceWidget.Refresh()
	ui.pages.ShowPage(PageSelectDevice)
	ui.pages.SendToFront(PageSelectDevice)
	ui.app.SetFocus(ui.selectDeviceWidget.list)
	ui.selectDeviceWidget.visible = true
}

func (ui *Ui) CloseSelectDevice() {
	ui.pages.HidePage(PageSelectDevice)
	ui.selectDeviceWidget.visible = false
}

func (ui *Ui) showMessageBox(text string) {
	ui.pages.ShowPage(PageMessageBox)
	ui.messageBox.SetText(text)
	ui.app.SetFocus(ui.messageBox)
}

// showBlockedPrompt raises the output-policy prompt. Called from the
// tview goroutine.
func (ui *Ui) showBlockedPrompt(bp remote.BlockedPlay) {
	ui.blockedPrompt = &bp
	title := bp.Title
	if title == "" {
		title = "playback"
	}
	ui.blockedModal.SetText(fmt.Sprintf("The system blocked audio output for %q.\nPlay it on this device?", title))
	ui.pages.ShowPage(PageBlockedPlay)
	ui.pages.SendToFront(PageBlockedPlay)
	ui.app.SetFocus(ui.blockedModal)
}

func (ui *Ui) resolveBlockedPrompt(accepted bool) {
	ui.pages.HidePage(PageBlockedPlay)
	if ui.blockedPrompt == nil {
		return
	}
	ui.blockedPrompt = nil
	if accepted {
		var bp remote.BlockedPlay
		var ok bool
		ui.session.Do(func() { bp, ok = ui.runner.AcceptBlocked() })
		if ok {
			ui.session.ResumeBlocked(bp)
		}
	} else {
		ui.session.Do(ui.runner.DismissBlocked)
	}
}
