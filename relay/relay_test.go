package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/remote"
)

type clientEvents struct {
	commands chan remote.Command
	states   chan remote.State
	stops    chan string
	grants   chan struct{}
	requests chan string
}

func startClient(t *testing.T, serverURL, session, id string) (*Client, *clientEvents) {
	t.Helper()

	ev := &clientEvents{
		commands: make(chan remote.Command, 8),
		states:   make(chan remote.State, 8),
		stops:    make(chan string, 8),
		grants:   make(chan struct{}, 8),
		requests: make(chan string, 8),
	}

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	c := NewClient(wsURL, session, id, "Device "+id, logger.Init())
	c.OnCommand(func(cmd remote.Command) { ev.commands <- cmd })
	c.OnStateBroadcast(func(st remote.State) { ev.states <- st })
	c.OnStopPlayback(func(from string) { ev.stops <- from })
	c.OnBecomeActivePlayer(func() { ev.grants <- struct{}{} })
	c.OnStateRequest(func(from string) { ev.requests <- from })

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
	})

	require.Eventually(t, c.IsConnected, 5*time.Second, 10*time.Millisecond,
		"client %s must connect", id)
	return c, ev
}

func waitState(t *testing.T, ev *clientEvents) remote.State {
	t.Helper()
	select {
	case st := <-ev.states:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a state broadcast")
		return remote.State{}
	}
}

func TestFirstDeviceInRoomIsGrantedActive(t *testing.T) {
	hub := NewHub(logger.Init())
	server := httptest.NewServer(hub.Router())
	defer server.Close()

	_, ev := startClient(t, server.URL, "living-room", "dev-a")

	select {
	case <-ev.grants:
	case <-time.After(5 * time.Second):
		t.Fatal("first device did not receive the active grant")
	}
}

func TestStateFansOutToPeers(t *testing.T) {
	hub := NewHub(logger.Init())
	server := httptest.NewServer(hub.Router())
	defer server.Close()

	a, evA := startClient(t, server.URL, "s1", "dev-a")
	<-evA.grants

	_, evB := startClient(t, server.URL, "s1", "dev-b")

	// B requested state on connect; drain that before sending.
	select {
	case <-evA.requests:
	case <-time.After(5 * time.Second):
		t.Fatal("a never saw b's state request")
	}

	track := remote.TrackRef{ID: "t1", Title: "One"}
	require.NoError(t, a.SendState(remote.State{
		DeviceID: "dev-a",
		Playing:  true,
		Track:    &track,
		Position: 12.5,
		Volume:   80,
		SentAt:   remote.NowMillis(),
	}))

	st := waitState(t, evB)
	assert.Equal(t, "dev-a", st.DeviceID)
	assert.True(t, st.Playing)
	require.NotNil(t, st.Track)
	assert.Equal(t, "t1", st.Track.ID)
	assert.Equal(t, 12.5, st.Position)
}

func TestTargetedCommandReachesOnlyAddressee(t *testing.T) {
	hub := NewHub(logger.Init())
	server := httptest.NewServer(hub.Router())
	defer server.Close()

	a, evA := startClient(t, server.URL, "s2", "dev-a")
	<-evA.grants
	_, evB := startClient(t, server.URL, "s2", "dev-b")
	_, evC := startClient(t, server.URL, "s2", "dev-c")

	cmd := remote.NewCommand(remote.CmdVolume, "dev-a")
	cmd.To = "dev-b"
	cmd.Volume = 15
	require.NoError(t, a.SendCommand(cmd))

	select {
	case got := <-evB.commands:
		assert.Equal(t, remote.CmdVolume, got.Kind)
		assert.Equal(t, 15, got.Volume)
	case <-time.After(5 * time.Second):
		t.Fatal("addressee never received the command")
	}

	select {
	case got := <-evC.commands:
		t.Fatalf("bystander received targeted command %v", got.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStopReachesEveryOtherDevice(t *testing.T) {
	hub := NewHub(logger.Init())
	server := httptest.NewServer(hub.Router())
	defer server.Close()

	_, evA := startClient(t, server.URL, "s3", "dev-a")
	<-evA.grants
	b, _ := startClient(t, server.URL, "s3", "dev-b")

	require.NoError(t, b.SendStop())

	select {
	case from := <-evA.stops:
		assert.Equal(t, "dev-b", from)
	case <-time.After(5 * time.Second):
		t.Fatal("stop signal never arrived")
	}
}

func TestSecondDeviceGetsNoGrant(t *testing.T) {
	hub := NewHub(logger.Init())
	server := httptest.NewServer(hub.Router())
	defer server.Close()

	_, evA := startClient(t, server.URL, "s4", "dev-a")
	<-evA.grants
	_, evB := startClient(t, server.URL, "s4", "dev-b")

	select {
	case <-evB.grants:
		t.Fatal("second device must not be granted the active role")
	case <-time.After(200 * time.Millisecond):
	}
}
