package remote

import (
	"fmt"
	"sync"

	"github.com/chorusfm/chorus/playback"
)

// testLoop serializes work the way the player session's loop does, so
// timer callbacks and channel deliveries never race test assertions.
type testLoop struct {
	mu     sync.Mutex
	ch     chan func()
	done   chan struct{}
	closed bool
}

func newTestLoop() *testLoop {
	l := &testLoop{ch: make(chan func(), 256), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for f := range l.ch {
			f()
		}
	}()
	return l
}

// post schedules f; posts after stop are dropped.
func (l *testLoop) post(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.ch <- f
}

// call runs f on the loop and waits for it.
func (l *testLoop) call(f func()) {
	done := make(chan struct{})
	l.post(func() {
		f()
		close(done)
	})
	<-done
}

func (l *testLoop) stop() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	l.mu.Unlock()
	<-l.done
}

// memHub is an in-memory signaling fabric: every send fans out
// synchronously to the other registered channels.
type memHub struct {
	mu    sync.Mutex
	peers map[string]*memChannel
}

func newMemHub() *memHub {
	return &memHub{peers: make(map[string]*memChannel)}
}

func (h *memHub) channel(id string) *memChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &memChannel{hub: h, id: id, connected: true}
	h.peers[id] = c
	return c
}

func (h *memHub) others(from string) []*memChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*memChannel
	for id, c := range h.peers {
		if id != from {
			out = append(out, c)
		}
	}
	return out
}

type memChannel struct {
	hub       *memHub
	id        string
	connected bool

	mu        sync.Mutex
	onCommand func(Command)
	onState   func(State)
	onStop    func(string)
	onGrant   func()
	onReq     func(string)

	sentStates   []State
	sentCommands []Command
	sentStops    int
}

var _ Channel = (*memChannel)(nil)

func (c *memChannel) SendCommand(cmd Command) error {
	c.mu.Lock()
	c.sentCommands = append(c.sentCommands, cmd)
	c.mu.Unlock()
	for _, p := range c.hub.others(c.id) {
		if cmd.To != "" && cmd.To != p.id {
			continue
		}
		p.deliverCommand(cmd)
	}
	return nil
}

func (c *memChannel) SendState(st State) error {
	c.mu.Lock()
	c.sentStates = append(c.sentStates, st)
	c.mu.Unlock()
	for _, p := range c.hub.others(c.id) {
		p.deliverState(st)
	}
	return nil
}

func (c *memChannel) SendStop() error {
	c.mu.Lock()
	c.sentStops++
	c.mu.Unlock()
	for _, p := range c.hub.others(c.id) {
		p.deliverStop(c.id)
	}
	return nil
}

func (c *memChannel) SendStateRequest() error {
	for _, p := range c.hub.others(c.id) {
		p.deliverStateRequest(c.id)
	}
	return nil
}

func (c *memChannel) SendGrantActive(to string) error {
	for _, p := range c.hub.others(c.id) {
		if p.id == to {
			p.deliverGrant()
		}
	}
	return nil
}

func (c *memChannel) OnCommand(fn func(Command)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCommand = fn
}

func (c *memChannel) OnStateBroadcast(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *memChannel) OnStopPlayback(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStop = fn
}

func (c *memChannel) OnBecomeActivePlayer(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onGrant = fn
}

func (c *memChannel) OnStateRequest(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReq = fn
}

func (c *memChannel) IsConnected() bool { return c.connected }
func (c *memChannel) Close() error      { return nil }

func (c *memChannel) deliverCommand(cmd Command) {
	c.mu.Lock()
	fn := c.onCommand
	c.mu.Unlock()
	if fn != nil {
		fn(cmd)
	}
}

func (c *memChannel) deliverState(st State) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (c *memChannel) deliverStop(from string) {
	c.mu.Lock()
	fn := c.onStop
	c.mu.Unlock()
	if fn != nil {
		fn(from)
	}
}

func (c *memChannel) deliverStateRequest(from string) {
	c.mu.Lock()
	fn := c.onReq
	c.mu.Unlock()
	if fn != nil {
		fn(from)
	}
}

func (c *memChannel) deliverGrant() {
	c.mu.Lock()
	fn := c.onGrant
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *memChannel) statesSent() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, len(c.sentStates))
	copy(out, c.sentStates)
	return out
}

// fakePlayer records LocalPlayer calls and keeps just enough state
// for the runner's loading/media checks.
type fakePlayer struct {
	mu       sync.Mutex
	store    *playback.Store
	loading  bool
	hasMedia bool

	calls     []string
	transfers []TransferState
}

var _ LocalPlayer = (*fakePlayer)(nil)

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) Play() error  { p.record("play"); return nil }
func (p *fakePlayer) Pause() error { p.record("pause"); return nil }
func (p *fakePlayer) Next() error  { p.record("next"); return nil }
func (p *fakePlayer) Prev() error  { p.record("prev"); return nil }

func (p *fakePlayer) Seek(seconds float64) error {
	p.record(fmt.Sprintf("seek(%g)", seconds))
	return nil
}

func (p *fakePlayer) SetVolume(v int) error {
	p.record(fmt.Sprintf("setVolume(%d)", v))
	return nil
}

func (p *fakePlayer) SetQueue(queue []TrackRef, index int) error {
	p.record(fmt.Sprintf("setQueue(%d,%d)", len(queue), index))
	p.mu.Lock()
	p.hasMedia = len(queue) > 0
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) PlayTrack(track TrackRef, queue []TrackRef, index int) error {
	p.record("playTrack(" + track.ID + ")")
	p.mu.Lock()
	p.hasMedia = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) ApplyTransfer(t TransferState) error {
	p.record("transfer(" + t.Track.ID + ")")
	p.mu.Lock()
	p.transfers = append(p.transfers, t)
	p.hasMedia = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) HandleStopSignal() {
	p.record("stopSignal")
	p.store.SetPlaying(false)
	p.store.SetActivePlayer(false)
}

func (p *fakePlayer) IsLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *fakePlayer) HasMedia() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMedia
}

func (p *fakePlayer) setLoading(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = v
}

func (p *fakePlayer) setHasMedia(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasMedia = v
}

func (p *fakePlayer) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *fakePlayer) transferLog() []TransferState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TransferState, len(p.transfers))
	copy(out, p.transfers)
	return out
}
