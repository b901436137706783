// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package remote

import (
	"time"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
)

// BlockedPlay describes a play attempt the platform's output policy
// refused. The UI shows it as a one-shot prompt; accepting re-asserts
// the active role and retries from the recorded position.
type BlockedPlay struct {
	TrackID  string
	Title    string
	Position float64
	Volume   int
}

// pendingPlay marks a remote-initiated play attempt that has not been
// confirmed or rejected yet. Expires on a timer (presumed success) or
// converts into a BlockedPlay prompt when the engine reports an
// output-policy rejection for it.
type pendingPlay struct {
	trackID  string
	title    string
	position float64
	volume   int
	timer    *time.Timer
}

// Runner turns received commands into local player calls, exactly
// once per logical command, without clobbering an in-flight load.
//
// Commands split into two classes. The always-immediate set (pause,
// setVolume, setQueue, playTrack, transferPlayback) executes on
// receipt no matter what: a pause must never wait, and queue/track
// replacement intentionally supersedes whatever is loading. The rest
// (play, next, prev, seek) would race a load, so they queue while one
// is in flight and run when it settles.
//
// All methods must be called on the session loop goroutine; timer
// callbacks re-enter it through post.
type Runner struct {
	store  *playback.Store
	player LocalPlayer
	log    logger.LoggerInterface
	t      Timings
	post   func(func())

	deviceID string

	queued    []Command
	seen      *seenWindow
	waitTimer *time.Timer
	waitStart time.Time

	pending   *pendingPlay
	prompt    *BlockedPlay
	onBlocked func(BlockedPlay)
	stopped   bool
}

func NewRunner(store *playback.Store, player LocalPlayer, log logger.LoggerInterface, deviceID string, post func(func()), t Timings) *Runner {
	return &Runner{
		store:    store,
		player:   player,
		log:      log,
		t:        t,
		post:     post,
		deviceID: deviceID,
		seen:     newSeenWindow(t.SeenWindow),
	}
}

// OnBlockedPlay registers the prompt callback. At most one prompt is
// live at a time; further rejections are swallowed until the live one
// is accepted or dismissed.
func (r *Runner) OnBlockedPlay(fn func(BlockedPlay)) {
	r.onBlocked = fn
}

func isImmediate(kind CommandKind) bool {
	switch kind {
	case CmdPause, CmdVolume, CmdSetQueue, CmdPlayTrack, CmdTransfer:
		return true
	}
	return false
}

// Handle routes one received command.
func (r *Runner) Handle(cmd Command) {
	if cmd.ID != "" && r.seen.Seen(cmd.ID) {
		r.log.Printf("remote: dropped duplicate %s command %s", cmd.Kind, cmd.ID)
		return
	}

	if isImmediate(cmd.Kind) {
		r.execute(cmd)
		return
	}

	if r.player.IsLoading() {
		r.enqueue(cmd)
		return
	}
	if !r.player.HasMedia() {
		// Fresh session: nothing loaded and nothing loading. A
		// playTrack/setQueue may be right behind this command, so
		// wait a bounded moment for media before giving up.
		r.enqueue(cmd)
		r.armWait()
		return
	}

	r.execute(cmd)
}

func (r *Runner) enqueue(cmd Command) {
	r.queued = append(r.queued, cmd)
	r.log.Printf("remote: queued %s command until load settles", cmd.Kind)
}

func (r *Runner) armWait() {
	if r.waitTimer != nil {
		return
	}
	r.waitStart = time.Now()
	r.waitTimer = time.AfterFunc(r.t.CommandPoll, func() { r.post(r.pollWait) })
}

func (r *Runner) pollWait() {
	r.waitTimer = nil
	if r.stopped || len(r.queued) == 0 {
		return
	}
	if r.player.HasMedia() || time.Since(r.waitStart) >= r.t.CommandWait {
		r.Flush()
		return
	}
	r.waitTimer = time.AfterFunc(r.t.CommandPoll, func() { r.post(r.pollWait) })
}

// Flush executes the deferred queue. The session calls it when a load
// settles (either way); the bounded wait calls it when media appears
// or the wait expires.
//
// Queued next/prev collapse to the single most recent navigation
// command: a controller that mashed "next" three times during a load
// wants the track after this one, not three tracks later.
func (r *Runner) Flush() {
	if r.waitTimer != nil {
		r.waitTimer.Stop()
		r.waitTimer = nil
	}
	if len(r.queued) == 0 {
		return
	}
	cmds := r.queued
	r.queued = nil

	lastNav := -1
	for i, c := range cmds {
		if c.Kind == CmdNext || c.Kind == CmdPrev {
			lastNav = i
		}
	}
	for i, c := range cmds {
		if (c.Kind == CmdNext || c.Kind == CmdPrev) && i != lastNav {
			r.log.Printf("remote: collapsed queued %s command", c.Kind)
			continue
		}
		r.execute(c)
	}
}

func (r *Runner) execute(cmd Command) {
	targeted := cmd.To != "" && cmd.To == r.deviceID
	active := r.store.IsActivePlayer()

	switch cmd.Kind {
	case CmdPause:
		// Pausing is always safe, on any device, mid-load or not.
		if err := r.player.Pause(); err != nil {
			r.log.PrintError("remote pause", err)
		}

	case CmdVolume:
		if !active && !targeted {
			return
		}
		if err := r.player.SetVolume(cmd.Volume); err != nil {
			r.log.PrintError("remote setVolume", err)
		}

	case CmdPlay:
		if !active {
			r.log.Printf("remote: ignoring play, not the active player")
			return
		}
		cur := r.store.Current()
		r.markPending(cur.ID, cur.Title, r.store.Status().Position, r.store.Volume())
		if err := r.player.Play(); err != nil {
			r.log.PrintError("remote play", err)
		}

	case CmdNext:
		if !active {
			return
		}
		if err := r.player.Next(); err != nil {
			r.log.PrintError("remote next", err)
		}

	case CmdPrev:
		if !active {
			return
		}
		if err := r.player.Prev(); err != nil {
			r.log.PrintError("remote prev", err)
		}

	case CmdSeek:
		if !active {
			return
		}
		if err := r.player.Seek(cmd.Seek); err != nil {
			r.log.PrintError("remote seek", err)
		}

	case CmdPlayTrack:
		if cmd.Track == nil {
			r.log.Printf("remote: playTrack without a track")
			return
		}
		r.markPending(cmd.Track.ID, cmd.Track.Title, 0, r.store.Volume())
		if err := r.player.PlayTrack(*cmd.Track, cmd.Queue, cmd.Index); err != nil {
			r.log.PrintError("remote playTrack", err)
		}

	case CmdSetQueue:
		if len(cmd.Queue) > 0 {
			ix := cmd.Index
			if ix < 0 || ix >= len(cmd.Queue) {
				ix = 0
			}
			r.markPending(cmd.Queue[ix].ID, cmd.Queue[ix].Title, 0, r.store.Volume())
		}
		if err := r.player.SetQueue(cmd.Queue, cmd.Index); err != nil {
			r.log.PrintError("remote setQueue", err)
		}

	case CmdTransfer:
		if cmd.Transfer == nil {
			r.log.Printf("remote: transferPlayback without a state")
			return
		}
		t := *cmd.Transfer
		if t.Playing {
			r.markPending(t.Track.ID, t.Track.Title, t.Position, t.Volume)
		}
		if err := r.player.ApplyTransfer(t); err != nil {
			r.log.PrintError("remote transferPlayback", err)
		}

	default:
		r.log.Printf("remote: unknown command %q", cmd.Kind)
	}
}

// markPending records a play attempt about to be made on behalf of a
// remote command. Cleared by timeout (the play is presumed to have
// succeeded) or converted to a prompt by HandleBlockedPlay.
func (r *Runner) markPending(trackID, title string, position float64, volume int) {
	r.clearPending()
	p := &pendingPlay{trackID: trackID, title: title, position: position, volume: volume}
	p.timer = time.AfterFunc(r.t.PendingPlayTimeout, func() {
		r.post(func() {
			if r.pending == p {
				r.pending = nil
			}
		})
	})
	r.pending = p
}

func (r *Runner) clearPending() {
	if r.pending != nil && r.pending.timer != nil {
		r.pending.timer.Stop()
	}
	r.pending = nil
}

// HasPendingPlay reports an unresolved remote play attempt. The load
// orchestration checks it to avoid doubling a play that a command
// already issued.
func (r *Runner) HasPendingPlay() bool {
	return r.pending != nil
}

// HandleBlockedPlay converts the pending attempt (or, for a locally
// initiated play, the current item) into a user prompt. The session
// calls it when the engine rejects a play with an output-policy
// error.
func (r *Runner) HandleBlockedPlay() {
	p := r.pending
	r.clearPending()
	r.store.SetPlaying(false)

	if r.prompt != nil {
		// A prompt is already live; the retry it offers covers this
		// rejection too.
		return
	}

	var bp BlockedPlay
	if p != nil {
		bp = BlockedPlay{TrackID: p.trackID, Title: p.title, Position: p.position, Volume: p.volume}
	} else {
		cur := r.store.Current()
		bp = BlockedPlay{TrackID: cur.ID, Title: cur.Title, Position: r.store.Status().Position, Volume: r.store.Volume()}
	}
	r.prompt = &bp
	r.log.Printf("remote: playback blocked for %q, waiting for user unlock", bp.Title)
	if r.onBlocked != nil {
		r.onBlocked(bp)
	}
}

// AcceptBlocked consumes the live prompt. ok is false when none is
// live.
func (r *Runner) AcceptBlocked() (BlockedPlay, bool) {
	if r.prompt == nil {
		return BlockedPlay{}, false
	}
	bp := *r.prompt
	r.prompt = nil
	return bp, true
}

// DismissBlocked drops the live prompt without acting on it.
func (r *Runner) DismissBlocked() {
	r.prompt = nil
}

// QueuedLen reports how many commands wait for the current load.
func (r *Runner) QueuedLen() int {
	return len(r.queued)
}

// Shutdown stops outstanding timers.
func (r *Runner) Shutdown() {
	r.stopped = true
	if r.waitTimer != nil {
		r.waitTimer.Stop()
		r.waitTimer = nil
	}
	r.clearPending()
	r.queued = nil
}
