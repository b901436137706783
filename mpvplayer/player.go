// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package mpvplayer implements engine.Engine over a single embedded
// mpv instance. The session owns the one Player per process; the
// queue and all playback decisions live above this package, mpv only
// decodes and reports.
package mpvplayer

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/supersonic-app/go-mpv"

	"github.com/chorusfm/chorus/engine"
	"github.com/chorusfm/chorus/logger"
)

type Player struct {
	instance  *mpv.Mpv
	mpvEvents chan *mpv.Event
	events    chan engine.Event
	logger    logger.LoggerInterface

	mu sync.Mutex

	url      string
	loading  bool
	stopped  bool
	playing  bool
	pending  bool // play requested, not yet confirmed by a pause flip
	timePos  float64
	duration float64

	// replaceInProgress is set while a loadfile supersedes whatever
	// was playing; the END_FILE of the old media is not an end.
	replaceInProgress bool
}

var _ engine.Engine = (*Player)(nil)

func NewPlayer(logger logger.LoggerInterface) (*Player, error) {
	mpvInstance := mpv.Create()

	if err := mpvInstance.SetOptionString("audio-display", "no"); err != nil {
		mpvInstance.TerminateDestroy()
		return nil, err
	}
	if err := mpvInstance.SetOptionString("video", "no"); err != nil {
		mpvInstance.TerminateDestroy()
		return nil, err
	}
	// Stay alive with nothing loaded; the session decides what is next.
	if err := mpvInstance.SetOptionString("idle", "yes"); err != nil {
		mpvInstance.TerminateDestroy()
		return nil, err
	}

	if err := mpvInstance.Initialize(); err != nil {
		mpvInstance.TerminateDestroy()
		return nil, err
	}

	p := &Player{
		instance:  mpvInstance,
		mpvEvents: make(chan *mpv.Event),
		events:    make(chan engine.Event, 64),
		logger:    logger,
		stopped:   true,
	}

	go p.mpvEngineEventHandler(mpvInstance)
	go p.eventLoop()
	return p, nil
}

func (p *Player) mpvEngineEventHandler(instance *mpv.Mpv) {
	for {
		evt := instance.WaitEvent(1)
		p.mpvEvents <- evt
	}
}

// Load starts fetching url, replacing whatever is loaded. mpv sniffs
// the container itself; format is accepted for the engine contract
// and ignored here.
func (p *Player) Load(url string, autoplay bool, format string) error {
	_ = format

	p.mu.Lock()
	replacing := p.url != "" && !p.stopped
	p.url = url
	p.loading = true
	p.stopped = false
	p.playing = false
	p.pending = autoplay
	p.timePos = 0
	p.replaceInProgress = replacing
	p.mu.Unlock()

	if err := p.instance.SetProperty("pause", mpv.FORMAT_FLAG, !autoplay); err != nil {
		p.logger.PrintError("mpv setprop pause", err)
	}
	return p.instance.Command([]string{"loadfile", url})
}

// Reload re-opens the current url from scratch. Used when a seek
// landed in bytes the server had not finished writing.
func (p *Player) Reload() error {
	p.mu.Lock()
	url := p.url
	if url == "" {
		p.mu.Unlock()
		return fmt.Errorf("[mpvplayer] nothing to reload")
	}
	p.loading = true
	p.playing = false
	p.replaceInProgress = true
	p.mu.Unlock()

	if err := p.instance.SetProperty("pause", mpv.FORMAT_FLAG, true); err != nil {
		p.logger.PrintError("mpv setprop pause", err)
	}
	return p.instance.Command([]string{"loadfile", url})
}

func (p *Player) Play() error {
	p.mu.Lock()
	stopped := p.stopped
	url := p.url
	p.pending = true
	p.mu.Unlock()

	if stopped && url != "" {
		// mpv unloaded the file on stop; start it over.
		p.mu.Lock()
		p.loading = true
		p.stopped = false
		p.replaceInProgress = false
		p.mu.Unlock()
		if err := p.instance.Command([]string{"loadfile", url}); err != nil {
			return p.classifyPlayError(err)
		}
	}
	if err := p.instance.SetProperty("pause", mpv.FORMAT_FLAG, false); err != nil {
		return p.classifyPlayError(err)
	}
	return nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	p.pending = false
	p.mu.Unlock()
	return p.instance.SetProperty("pause", mpv.FORMAT_FLAG, true)
}

func (p *Player) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.loading = false
	p.playing = false
	p.pending = false
	p.timePos = 0
	p.mu.Unlock()
	return p.instance.Command([]string{"stop"})
}

func (p *Player) Seek(seconds float64) error {
	return p.instance.Command([]string{"seek", strconv.FormatFloat(seconds, 'f', 3, 64), "absolute"})
}

// CurrentTime is the last position mpv reported, the value the UI
// shows.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timePos
}

// ActualCurrentTime asks the decoder directly. After a seek into
// missing data the display position shows the target while audio-pts
// is still stuck before it.
func (p *Player) ActualCurrentTime() float64 {
	if pts, err := p.getPropertyFloat64("audio-pts"); err == nil {
		return pts
	}
	if pos, err := p.getPropertyFloat64("time-pos"); err == nil {
		return pos
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timePos
}

func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) IsLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *Player) IsPendingPlay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Player) SetVolume(v int) error {
	if v > 100 {
		v = 100
	} else if v < 0 {
		v = 0
	}
	return p.instance.SetProperty("volume", mpv.FORMAT_INT64, int64(v))
}

func (p *Player) SetMuted(m bool) error {
	return p.instance.SetProperty("mute", mpv.FORMAT_FLAG, m)
}

func (p *Player) Events() <-chan engine.Event {
	return p.events
}

func (p *Player) Close() {
	p.mpvEvents <- nil
	p.instance.TerminateDestroy()
}
