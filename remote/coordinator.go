// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package remote

import (
	"math"
	"sort"
	"time"

	"github.com/bep/debounce"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
)

// DeviceInfo is one session peer as last heard from.
type DeviceInfo struct {
	ID       string
	Name     string
	LastSeen time.Time
	State    State
}

// Coordinator owns the active-player arbitration for this device and
// the outgoing state-broadcast cadence. There is no central session
// authority: correctness rests on the stop signal, which a device
// broadcasts when it becomes active and which every other device
// obeys unconditionally. That keeps at most one device audible even
// when messages race.
//
// Broadcast cadence while active and playing: a steady tick keeps
// passive progress bars moving; track-identity changes go out
// immediately so peers never display stale metadata; play/pause and
// volume flicker is debounced. Identical consecutive snapshots
// (same playing flag, track, volume, whole second) are not re-sent.
//
// All methods run on the session loop goroutine. Channel callbacks
// and timers re-enter it through post.
type Coordinator struct {
	store  *playback.Store
	ch     Channel
	runner *Runner
	player LocalPlayer
	log    logger.LoggerInterface
	t      Timings
	post   func(func())

	deviceID   string
	deviceName string

	lastSig uint64
	sigOK   bool

	debounced func(func())

	devices     map[string]*DeviceInfo
	remoteState *State

	onRemoteChange func()

	unsubscribe func()
	done        chan struct{}
}

func NewCoordinator(store *playback.Store, ch Channel, runner *Runner, player LocalPlayer, log logger.LoggerInterface, deviceID, deviceName string, post func(func()), t Timings) *Coordinator {
	return &Coordinator{
		store:      store,
		ch:         ch,
		runner:     runner,
		player:     player,
		log:        log,
		t:          t,
		post:       post,
		deviceID:   deviceID,
		deviceName: deviceName,
		debounced:  debounce.New(t.BroadcastDebounce),
		devices:    make(map[string]*DeviceInfo),
		done:       make(chan struct{}),
	}
}

// OnRemoteChange registers a callback fired (on the loop) whenever
// the device registry or the observed remote state changes. The UI
// uses it to redraw.
func (c *Coordinator) OnRemoteChange(fn func()) {
	c.onRemoteChange = fn
}

// Start wires channel handlers, subscribes to store changes, and
// begins the broadcast tick. Call once, from the loop.
func (c *Coordinator) Start() {
	c.ch.OnCommand(func(cmd Command) {
		c.post(func() { c.handleCommand(cmd) })
	})
	c.ch.OnStateBroadcast(func(st State) {
		c.post(func() { c.handleState(st) })
	})
	c.ch.OnStopPlayback(func(from string) {
		c.post(func() { c.handleStop(from) })
	})
	c.ch.OnBecomeActivePlayer(func() {
		c.post(c.BecomeActivePlayer)
	})
	c.ch.OnStateRequest(func(from string) {
		c.post(func() { c.handleStateRequest(from) })
	})

	c.unsubscribe = c.store.Subscribe(c.storeChanged)

	go c.tickLoop()
}

func (c *Coordinator) Stop() {
	close(c.done)
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

func (c *Coordinator) tickLoop() {
	ticker := time.NewTicker(c.t.BroadcastTick)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.post(c.tick)
		}
	}
}

func (c *Coordinator) tick() {
	c.pruneDevices()
	if c.store.IsActivePlayer() && c.store.Status().Playing {
		c.broadcast(false)
	}
}

// BecomeActivePlayer claims the active role for this device. The stop
// broadcast is what makes every other device fall silent; sending it
// again when already active is harmless and heals a split brain.
func (c *Coordinator) BecomeActivePlayer() {
	was := c.store.IsActivePlayer()
	c.store.SetActivePlayer(true)
	if !was {
		c.log.Printf("remote: becoming the active player")
	}
	if err := c.ch.SendStop(); err != nil {
		c.log.PrintError("send stop", err)
	}
	c.remoteState = nil
	c.broadcast(true)
	c.notifyRemoteChange()
}

func (c *Coordinator) handleStop(from string) {
	if from == c.deviceID {
		return
	}
	// Unconditional: a stop signal outranks any local play intent.
	// Pause and demotion happen in this same loop turn, so there is
	// no window in which two devices both believe they are active.
	c.player.HandleStopSignal()
	c.log.Printf("remote: %s took over playback", c.peerName(from))
	c.notifyRemoteChange()
}

func (c *Coordinator) handleCommand(cmd Command) {
	if cmd.From == c.deviceID {
		return
	}
	if cmd.To != "" && cmd.To != c.deviceID {
		return
	}
	c.touchDevice(cmd.From, "")
	c.runner.Handle(cmd)
}

func (c *Coordinator) handleState(st State) {
	if st.DeviceID == c.deviceID {
		return
	}
	d := c.touchDevice(st.DeviceID, st.DeviceName)
	d.State = st
	if !c.store.IsActivePlayer() {
		c.remoteState = &st
	}
	c.notifyRemoteChange()
}

func (c *Coordinator) handleStateRequest(from string) {
	if from == c.deviceID {
		return
	}
	c.touchDevice(from, "")
	if c.store.IsActivePlayer() {
		// The requester just joined or reconnected; bypass the
		// signature dedup so it gets a snapshot no matter what.
		c.broadcast(true)
	}
	c.notifyRemoteChange()
}

func (c *Coordinator) storeChanged(ch playback.Change) {
	if !c.store.IsActivePlayer() {
		return
	}
	switch ch {
	case playback.ChangeMedia:
		c.broadcast(false)
	case playback.ChangeStatus, playback.ChangeVolume:
		c.debounced(func() {
			c.post(func() { c.broadcast(false) })
		})
	}
}

type stateSig struct {
	Playing bool
	TrackID string
	Volume  int
	Second  int64
}

func (c *Coordinator) broadcast(force bool) {
	if !c.store.IsActivePlayer() || !c.ch.IsConnected() {
		return
	}

	st := c.Snapshot()

	sig := stateSig{Playing: st.Playing, Volume: st.Volume, Second: int64(math.Floor(st.Position))}
	if st.Track != nil {
		sig.TrackID = st.Track.ID
	}
	h, err := hashstructure.Hash(sig, hashstructure.FormatV2, nil)
	if err == nil {
		if !force && c.sigOK && h == c.lastSig {
			return
		}
		c.lastSig = h
		c.sigOK = true
	}

	if err := c.ch.SendState(st); err != nil {
		c.log.PrintError("broadcast state", err)
	}
}

// Snapshot builds this device's broadcastable state.
func (c *Coordinator) Snapshot() State {
	st := State{
		DeviceID:   c.deviceID,
		DeviceName: c.deviceName,
		Playing:    c.store.Status().Playing,
		Position:   c.store.Status().Position,
		Volume:     c.store.Volume(),
		SentAt:     NowMillis(),
	}
	if cur := c.store.Current(); !cur.IsZero() {
		ref := RefOf(cur)
		st.Track = &ref
	}
	return st
}

// SendCommand stamps and sends a controller command to the session.
func (c *Coordinator) SendCommand(kind CommandKind, mutate func(*Command)) error {
	cmd := NewCommand(kind, c.deviceID)
	if mutate != nil {
		mutate(&cmd)
	}
	return c.ch.SendCommand(cmd)
}

// TransferTo hands playback to another device: the full current
// context goes out, and this device demotes itself when the target's
// stop signal comes back. The stop signal stays the sole authority
// for relinquishing the role.
func (c *Coordinator) TransferTo(deviceID string) error {
	queue, index := c.store.Queue()
	t := TransferState{
		Track:    RefOf(c.store.Current()),
		Queue:    RefsOf(queue),
		Index:    index,
		Position: c.store.Status().Position,
		Volume:   c.store.Volume(),
		Playing:  c.store.Status().Playing,
	}
	c.log.Printf("remote: transferring playback to %s", c.peerName(deviceID))
	return c.SendCommand(CmdTransfer, func(cmd *Command) {
		cmd.To = deviceID
		cmd.Transfer = &t
	})
}

// RequestState asks the active player for a fresh snapshot.
func (c *Coordinator) RequestState() {
	if err := c.ch.SendStateRequest(); err != nil {
		c.log.PrintError("state request", err)
	}
}

// RemoteState returns the latest snapshot observed from the active
// device elsewhere, or ok=false when this device is active or nothing
// was heard yet.
func (c *Coordinator) RemoteState() (State, bool) {
	if c.store.IsActivePlayer() || c.remoteState == nil {
		return State{}, false
	}
	return *c.remoteState, true
}

// Devices lists known session peers, most recently seen first.
func (c *Coordinator) Devices() []DeviceInfo {
	out := make([]DeviceInfo, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Coordinator) touchDevice(id, name string) *DeviceInfo {
	if id == "" {
		return &DeviceInfo{}
	}
	d, ok := c.devices[id]
	if !ok {
		d = &DeviceInfo{ID: id}
		c.devices[id] = d
	}
	if name != "" {
		d.Name = name
	}
	d.LastSeen = time.Now()
	return d
}

func (c *Coordinator) pruneDevices() {
	cutoff := time.Now().Add(-c.t.DevicePrune)
	changed := false
	for id, d := range c.devices {
		if d.LastSeen.Before(cutoff) {
			delete(c.devices, id)
			changed = true
		}
	}
	if changed {
		c.notifyRemoteChange()
	}
}

func (c *Coordinator) peerName(id string) string {
	if d, ok := c.devices[id]; ok && d.Name != "" {
		return d.Name
	}
	if id == "" {
		return "unknown device"
	}
	return id
}

func (c *Coordinator) notifyRemoteChange() {
	if c.onRemoteChange != nil {
		c.onRemoteChange()
	}
}
