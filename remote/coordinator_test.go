package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
)

type testDevice struct {
	id     string
	store  *playback.Store
	player *fakePlayer
	runner *Runner
	coord  *Coordinator
	loop   *testLoop
	ch     *memChannel
}

func newTestDevice(t *testing.T, hub *memHub, id string) *testDevice {
	t.Helper()
	store := playback.NewStore()
	loop := newTestLoop()
	player := &fakePlayer{store: store, hasMedia: true}
	ch := hub.channel(id)
	log := logger.Init()
	tm := testTimings()
	runner := NewRunner(store, player, log, id, loop.post, tm)
	coord := NewCoordinator(store, ch, runner, player, log, id, "Device "+id, loop.post, tm)
	loop.call(coord.Start)
	t.Cleanup(func() {
		coord.Stop()
		loop.stop()
	})
	return &testDevice{id: id, store: store, player: player, runner: runner, coord: coord, loop: loop, ch: ch}
}

func activeCount(devices ...*testDevice) int {
	n := 0
	for _, d := range devices {
		if d.store.IsActivePlayer() {
			n++
		}
	}
	return n
}

func TestAtMostOneActivePlayer(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	b := newTestDevice(t, hub, "dev-b")
	c := newTestDevice(t, hub, "dev-c")
	all := []*testDevice{a, b, c}

	claims := []*testDevice{a, b, a, c, b, c, a}
	for _, d := range claims {
		d.loop.call(d.coord.BecomeActivePlayer)

		want := d
		assert.Eventually(t, func() bool {
			return activeCount(all...) == 1 && want.store.IsActivePlayer()
		}, time.Second, 5*time.Millisecond,
			"after %s claims the role it must be the only active device", d.id)
	}

	// The final claimer holds the role; everyone else got stopped at
	// least once along the way.
	assert.True(t, a.store.IsActivePlayer())
	assert.Contains(t, b.player.callLog(), "stopSignal")
	assert.Contains(t, c.player.callLog(), "stopSignal")
}

func TestStopSignalPausesAndDemotesInOneTurn(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")

	a.loop.call(func() {
		a.store.SetActivePlayer(true)
		a.store.SetPlaying(true)
	})

	// Deliver a stop as the channel would; the handler must leave no
	// turn in which the device is still active or still playing.
	a.ch.deliverStop("dev-x")

	a.loop.call(func() {
		assert.False(t, a.store.IsActivePlayer())
		assert.False(t, a.store.Status().Playing)
	})
	assert.Contains(t, a.player.callLog(), "stopSignal")
}

func TestBecomeActiveBroadcastsSnapshotImmediately(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	b := newTestDevice(t, hub, "dev-b")

	a.loop.call(a.coord.BecomeActivePlayer)

	assert.Eventually(t, func() bool {
		var ok bool
		var st State
		b.loop.call(func() { st, ok = b.coord.RemoteState() })
		return ok && st.DeviceID == "dev-a"
	}, time.Second, 5*time.Millisecond, "a passive peer must see the new active device without waiting for a tick")
}

func TestTrackChangeBypassesDebounce(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	b := newTestDevice(t, hub, "dev-b")

	a.loop.call(a.coord.BecomeActivePlayer)
	a.loop.call(func() {
		a.store.SetQueue([]playback.Item{{Kind: playback.KindTrack, ID: "t1", Title: "One"}}, 0)
	})

	// The identity broadcast happens inside the same loop turn as the
	// store change, so it is already recorded here.
	states := a.ch.statesSent()
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	require.NotNil(t, last.Track)
	assert.Equal(t, "t1", last.Track.ID)

	assert.Eventually(t, func() bool {
		var st State
		var ok bool
		b.loop.call(func() { st, ok = b.coord.RemoteState() })
		return ok && st.Track != nil && st.Track.ID == "t1"
	}, time.Second, 5*time.Millisecond)
}

func TestIdenticalSnapshotsAreNotResent(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	newTestDevice(t, hub, "dev-b")

	q := []playback.Item{{Kind: playback.KindTrack, ID: "t1", Title: "One"}}
	a.loop.call(a.coord.BecomeActivePlayer)        // snapshot 1 (empty)
	a.loop.call(func() { a.store.SetQueue(q, 0) }) // snapshot 2 (t1)
	a.loop.call(func() { a.store.SetQueue(q, 0) }) // same signature, skipped

	assert.Len(t, a.ch.statesSent(), 2)
}

func TestStateRequestForcesRebroadcast(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	b := newTestDevice(t, hub, "dev-b")

	a.loop.call(a.coord.BecomeActivePlayer)
	before := len(a.ch.statesSent())

	b.loop.call(b.coord.RequestState)

	// Even though nothing changed, the joiner gets a snapshot.
	assert.Eventually(t, func() bool {
		return len(a.ch.statesSent()) == before+1
	}, time.Second, 5*time.Millisecond)
}

func TestPlayPauseFlickerIsDebounced(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	tm := testTimings()

	a.loop.call(a.coord.BecomeActivePlayer)
	base := len(a.ch.statesSent())

	a.loop.call(func() {
		a.store.SetPlaying(true)
		a.store.SetPlaying(false)
		a.store.SetPlaying(true)
	})

	// The flicker coalesces into one snapshot carrying the final
	// value; steady ticks with the same signature stay deduplicated.
	assert.Eventually(t, func() bool {
		return len(a.ch.statesSent()) == base+1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * tm.BroadcastTick)

	st := a.ch.statesSent()
	assert.Len(t, st, base+1)
	assert.True(t, st[len(st)-1].Playing)
}

func TestTransferTargetsOneDevice(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	b := newTestDevice(t, hub, "dev-b")
	c := newTestDevice(t, hub, "dev-c")

	a.loop.call(a.coord.BecomeActivePlayer)
	a.loop.call(func() {
		a.store.SetQueue([]playback.Item{
			{Kind: playback.KindTrack, ID: "t1", Title: "One"},
			{Kind: playback.KindTrack, ID: "t2", Title: "Two"},
		}, 1)
		a.store.SetPosition(33)
		a.store.SetVolume(60)
		a.store.SetPlaying(true)
	})

	a.loop.call(func() {
		require.NoError(t, a.coord.TransferTo("dev-b"))
	})

	assert.Eventually(t, func() bool {
		return len(b.player.transferLog()) == 1
	}, time.Second, 5*time.Millisecond)

	tr := b.player.transferLog()[0]
	assert.Equal(t, "t2", tr.Track.ID)
	assert.Equal(t, 33.0, tr.Position)
	assert.Equal(t, 60, tr.Volume)
	assert.True(t, tr.Playing)
	assert.Len(t, tr.Queue, 2)
	assert.Equal(t, 1, tr.Index)

	assert.Empty(t, c.player.transferLog(), "a targeted transfer must not reach bystanders")
}

func TestGrantActivePromotesTarget(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	b := newTestDevice(t, hub, "dev-b")

	a.loop.call(a.coord.BecomeActivePlayer)
	a.loop.call(func() {
		require.NoError(t, a.ch.SendGrantActive("dev-b"))
	})

	assert.Eventually(t, func() bool {
		return b.store.IsActivePlayer() && !a.store.IsActivePlayer()
	}, time.Second, 5*time.Millisecond)
}

func TestQuietDevicesArePruned(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")

	a.ch.deliverState(State{DeviceID: "dev-gone", DeviceName: "Gone", SentAt: NowMillis()})

	var n int
	a.loop.call(func() { n = len(a.coord.Devices()) })
	require.Equal(t, 1, n)

	// After the prune horizon the registry forgets it.
	assert.Eventually(t, func() bool {
		var n int
		a.loop.call(func() { n = len(a.coord.Devices()) })
		return n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCommandsFromSelfAreIgnored(t *testing.T) {
	hub := newMemHub()
	a := newTestDevice(t, hub, "dev-a")
	a.store.SetActivePlayer(true)

	cmd := NewCommand(CmdNext, "dev-a")
	a.ch.deliverCommand(cmd)

	a.loop.call(func() {})
	assert.Empty(t, a.player.callLog())
}
