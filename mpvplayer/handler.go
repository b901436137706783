// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package mpvplayer

import (
	"fmt"
	"strings"

	"github.com/supersonic-app/go-mpv"

	"github.com/chorusfm/chorus/engine"
)

// eventLoop translates mpv's event stream into engine.Events. It is
// the only writer of the events channel.
func (p *Player) eventLoop() {
	if err := p.instance.ObserveProperty(0, "time-pos", mpv.FORMAT_DOUBLE); err != nil {
		p.logger.PrintError("mpv observe time-pos", err)
	}
	if err := p.instance.ObserveProperty(0, "duration", mpv.FORMAT_DOUBLE); err != nil {
		p.logger.PrintError("mpv observe duration", err)
	}
	if err := p.instance.ObserveProperty(0, "pause", mpv.FORMAT_FLAG); err != nil {
		p.logger.PrintError("mpv observe pause", err)
	}

	for evt := range p.mpvEvents {
		if evt == nil {
			// quit signal
			break
		}

		switch evt.Event_Id {
		case mpv.EVENT_PROPERTY_CHANGE:
			p.handlePropertyChange()

		case mpv.EVENT_START_FILE:
			// The new loadfile took; END_FILE of the old media (if
			// any) is behind us now.
			p.mu.Lock()
			p.replaceInProgress = false
			p.stopped = false
			p.mu.Unlock()

		case mpv.EVENT_FILE_LOADED:
			p.handleFileLoaded()

		case mpv.EVENT_END_FILE:
			p.handleEndFile()

		case mpv.EVENT_SEEK, mpv.EVENT_PLAYBACK_RESTART:
			// position lands via the time-pos observer

		case mpv.EVENT_IDLE, mpv.EVENT_NONE:
			continue

		default:
			continue
		}
	}
	close(p.events)
}

func (p *Player) handlePropertyChange() {
	pos, posErr := p.getPropertyFloat64("time-pos")
	dur, durErr := p.getPropertyFloat64("duration")
	paused, pausedErr := p.getPropertyBool("pause")

	p.mu.Lock()
	if posErr == nil {
		p.timePos = pos
	}
	if durErr == nil {
		p.duration = dur
	}
	loading := p.loading
	duration := p.duration
	var flipped, nowPlaying bool
	if pausedErr == nil && !loading {
		nowPlaying = !paused && !p.stopped
		flipped = nowPlaying != p.playing
		p.playing = nowPlaying
		if nowPlaying {
			p.pending = false
		}
	}
	p.mu.Unlock()

	if flipped {
		if nowPlaying {
			p.emit(engine.Event{Type: engine.EventPlay})
		} else {
			p.emit(engine.Event{Type: engine.EventPause})
		}
	}
	if posErr == nil && !loading {
		p.emit(engine.Event{Type: engine.EventTimeUpdate, Position: pos, Duration: duration})
	}
}

func (p *Player) handleFileLoaded() {
	dur, err := p.getPropertyFloat64("duration")

	p.mu.Lock()
	p.loading = false
	if err == nil {
		p.duration = dur
	}
	url := p.url
	dur = p.duration
	p.mu.Unlock()

	p.emit(engine.Event{Type: engine.EventLoad, URL: url, Duration: dur})
}

func (p *Player) handleEndFile() {
	p.mu.Lock()
	replacing := p.replaceInProgress
	loading := p.loading
	stopped := p.stopped
	url := p.url
	p.mu.Unlock()

	if replacing {
		// feedback for the media the new loadfile displaced
		return
	}

	if loading {
		// END_FILE before FILE_LOADED: the fetch or demux failed
		p.mu.Lock()
		p.loading = false
		p.playing = false
		p.pending = false
		p.mu.Unlock()
		p.emit(engine.Event{Type: engine.EventLoadError, URL: url,
			Err: fmt.Errorf("[mpvplayer] failed to load %s", url)})
		return
	}

	if stopped {
		// feedback for a requested stop
		return
	}

	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.emit(engine.Event{Type: engine.EventEnd, URL: url})
}

// playback-blocked signatures: messages mpv produces when the audio
// device cannot be opened (busy, missing, or access denied). These
// are user-actionable, unlike bad media.
var blockedSignatures = []string{
	"audio output",
	"ao: ",
	"device busy",
	"access denied",
	"operation not permitted",
}

func (p *Player) classifyPlayError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range blockedSignatures {
		if strings.Contains(msg, sig) {
			return fmt.Errorf("%w: %v", engine.ErrPlaybackBlocked, err)
		}
	}
	return err
}

func (p *Player) emit(ev engine.Event) {
	// Drop timeupdates under backpressure, they are advisory; never
	// drop lifecycle events.
	if ev.Type == engine.EventTimeUpdate {
		select {
		case p.events <- ev:
		default:
		}
		return
	}
	p.events <- ev
}
