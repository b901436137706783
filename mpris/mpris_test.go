package mpris

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/remote"
)

type fakeControls struct {
	calls []string
	seeks []float64
	vols  []int
}

func (f *fakeControls) Play() error       { f.calls = append(f.calls, "play"); return nil }
func (f *fakeControls) Pause() error      { f.calls = append(f.calls, "pause"); return nil }
func (f *fakeControls) TogglePlay() error { f.calls = append(f.calls, "toggle"); return nil }
func (f *fakeControls) Next() error       { f.calls = append(f.calls, "next"); return nil }
func (f *fakeControls) Prev() error       { f.calls = append(f.calls, "prev"); return nil }
func (f *fakeControls) Stop() error       { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeControls) Seek(seconds float64) error {
	f.calls = append(f.calls, "seek")
	f.seeks = append(f.seeks, seconds)
	return nil
}
func (f *fakeControls) SetVolume(v int) error {
	f.calls = append(f.calls, "volume")
	f.vols = append(f.vols, v)
	return nil
}

type fakeCommander struct {
	sent  []remote.Command
	state remote.State
	heard bool
}

func (f *fakeCommander) SendCommand(kind remote.CommandKind, mutate func(*remote.Command)) error {
	cmd := remote.NewCommand(kind, "me")
	if mutate != nil {
		mutate(&cmd)
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeCommander) RemoteState() (remote.State, bool) {
	return f.state, f.heard
}

func newTestBridge(active bool, cmdr Commander) (*Bridge, *fakeControls, *playback.Store) {
	ctl := &fakeControls{}
	st := playback.NewStore()
	st.SetActivePlayer(active)
	b := &Bridge{
		player: ctl,
		store:  st,
		remote: cmdr,
		do:     func(fn func()) { fn() },
		logger: logger.Init(),
	}
	return b, ctl, st
}

func TestActiveDeviceActsLocally(t *testing.T) {
	cmdr := &fakeCommander{}
	b, ctl, _ := newTestBridge(true, cmdr)

	b.Play()
	b.Next()
	b.Previous()

	assert.Equal(t, []string{"play", "next", "prev"}, ctl.calls)
	assert.Empty(t, cmdr.sent)
}

func TestPassiveDeviceSendsCommands(t *testing.T) {
	cmdr := &fakeCommander{}
	b, ctl, _ := newTestBridge(false, cmdr)

	b.Play()
	b.Pause()
	b.Next()
	b.Previous()

	assert.Empty(t, ctl.calls)
	kinds := make([]remote.CommandKind, 0, len(cmdr.sent))
	for _, cmd := range cmdr.sent {
		kinds = append(kinds, cmd.Kind)
	}
	assert.Equal(t, []remote.CommandKind{remote.CmdPlay, remote.CmdPause, remote.CmdNext, remote.CmdPrev}, kinds)
}

func TestPassivePlayPauseFollowsRemoteState(t *testing.T) {
	cmdr := &fakeCommander{state: remote.State{Playing: true}, heard: true}
	b, _, _ := newTestBridge(false, cmdr)

	b.PlayPause()
	assert.Equal(t, remote.CmdPause, cmdr.sent[0].Kind)

	cmdr.state.Playing = false
	b.PlayPause()
	assert.Equal(t, remote.CmdPlay, cmdr.sent[1].Kind)
}

func TestPassiveSeekIsRelativeToRemotePosition(t *testing.T) {
	cmdr := &fakeCommander{state: remote.State{Position: 100}, heard: true}
	b, ctl, _ := newTestBridge(false, cmdr)

	b.Seek(10_000_000) // +10s in microseconds

	assert.Empty(t, ctl.seeks)
	assert.Equal(t, remote.CmdSeek, cmdr.sent[0].Kind)
	assert.Equal(t, 110.0, cmdr.sent[0].Seek)
}

func TestPassiveSeekWithoutRemoteStateIsDropped(t *testing.T) {
	cmdr := &fakeCommander{}
	b, ctl, _ := newTestBridge(false, cmdr)

	b.Seek(10_000_000)

	assert.Empty(t, ctl.seeks)
	assert.Empty(t, cmdr.sent)
}

func TestNoRelayAlwaysActsLocally(t *testing.T) {
	b, ctl, _ := newTestBridge(false, nil)

	b.Play()
	b.Next()

	assert.Equal(t, []string{"play", "next"}, ctl.calls)
}
