// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package mpris exposes the playback session on the D-Bus session
// bus as org.mpris.MediaPlayer2.chorus, so desktop media keys and
// applets can drive it.
package mpris

import (
	"errors"
	"math"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/remote"
)

// Controls is the slice of the session MPRIS drives.
type Controls interface {
	Play() error
	Pause() error
	TogglePlay() error
	Next() error
	Prev() error
	Seek(seconds float64) error
	SetVolume(v int) error
	Stop() error
}

// Commander is the coordinator surface the bridge uses while this
// device is passive: media keys then steer whichever device is the
// active player. Loop-confined; every call goes through the do
// poster. Nil when no relay is configured.
type Commander interface {
	SendCommand(kind remote.CommandKind, mutate func(*remote.Command)) error
	RemoteState() (remote.State, bool)
}

type Bridge struct {
	dbus   *dbus.Conn
	player Controls
	store  *playback.Store
	remote Commander
	do     func(func())
	logger logger.LoggerInterface
	unsub  func()
}

// Register connects to the session bus and claims the player name.
// Fails when another chorus instance already owns it.
func Register(player Controls, store *playback.Store, commander Commander, do func(func()), log logger.LoggerInterface) (*Bridge, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		dbus:   conn,
		player: player,
		store:  store,
		remote: commander,
		do:     do,
		logger: log,
	}

	if err := conn.ExportAll(b, "/org/mpris/MediaPlayer2", "org.mpris.MediaPlayer2.Player"); err != nil {
		return nil, err
	}

	playerProps := map[string]*prop.Prop{
		"CanControl":     {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanGoNext":      {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanGoPrevious":  {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanPause":       {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanSeek":        {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"Metadata":       {Value: metadataOf(store.Current()), Writable: false, Emit: prop.EmitTrue, Callback: nil},
		"Volume":         {Value: float64(store.Volume()) / 100, Writable: true, Emit: prop.EmitTrue, Callback: b.volumeChange},
		"PlaybackStatus": {Value: statusOf(store), Writable: false, Emit: prop.EmitTrue, Callback: nil},
	}

	appProps := map[string]*prop.Prop{
		"CanQuit":             {Value: false, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanRaise":            {Value: false, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"HasTrackList":        {Value: false, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"Identity":            {Value: "chorus", Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"SupportedUriSchemes": {Value: "", Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"SupportedMimeTypes":  {Value: "", Writable: false, Emit: prop.EmitFalse, Callback: nil},
	}

	props, err := prop.Export(
		conn,
		"/org/mpris/MediaPlayer2",
		map[string]map[string]*prop.Prop{
			"org.mpris.MediaPlayer2":        appProps,
			"org.mpris.MediaPlayer2.Player": playerProps,
		},
	)
	if err != nil {
		return nil, err
	}

	n := &introspect.Node{
		Name: "/org/mpris/MediaPlayer2",
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       "org.mpris.MediaPlayer2.Player",
				Methods:    introspect.Methods(b),
				Properties: props.Introspection("org.mpris.MediaPlayer2.Player"),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(n), "/org/mpris/MediaPlayer2", "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, err
	}

	reply, err := conn.RequestName("org.mpris.MediaPlayer2.chorus", dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already owned")
	}

	b.unsub = store.Subscribe(func(c playback.Change) {
		if c == playback.ChangeMedia || c == playback.ChangeStatus {
			b.emitChanged()
		}
	})
	return b, nil
}

func (b *Bridge) Close() {
	if b.unsub != nil {
		b.unsub()
	}
	if err := b.dbus.Close(); err != nil {
		b.logger.PrintError("mpris close", err)
	}
}

// local reports whether media keys should act on this device. With
// no relay there is nothing else to steer.
func (b *Bridge) local() bool {
	return b.remote == nil || b.store.IsActivePlayer()
}

func (b *Bridge) send(kind remote.CommandKind, mutate func(*remote.Command)) {
	var err error
	b.do(func() { err = b.remote.SendCommand(kind, mutate) })
	if err != nil {
		b.logger.PrintError("mpris remote "+string(kind), err)
	}
}

func (b *Bridge) remoteState() (remote.State, bool) {
	var rs remote.State
	var ok bool
	b.do(func() { rs, ok = b.remote.RemoteState() })
	return rs, ok
}

// Methods below are the org.mpris.MediaPlayer2.Player surface; names
// and signatures are fixed by the MPRIS2 interface definition. Each
// acts locally when this device is the active player and turns into
// a remote command otherwise.

func (b *Bridge) Play() {
	if !b.local() {
		b.send(remote.CmdPlay, nil)
		return
	}
	if err := b.player.Play(); err != nil {
		b.logger.PrintError("mpris play", err)
	}
}

func (b *Bridge) Pause() {
	if !b.local() {
		b.send(remote.CmdPause, nil)
		return
	}
	if err := b.player.Pause(); err != nil {
		b.logger.PrintError("mpris pause", err)
	}
}

func (b *Bridge) PlayPause() {
	if !b.local() {
		kind := remote.CmdPlay
		if rs, ok := b.remoteState(); ok && rs.Playing {
			kind = remote.CmdPause
		}
		b.send(kind, nil)
		return
	}
	if err := b.player.TogglePlay(); err != nil {
		b.logger.PrintError("mpris playpause", err)
	}
}

func (b *Bridge) Stop() {
	if !b.local() {
		// no stop on the wire; pausing the active device is the
		// closest controller semantic
		b.send(remote.CmdPause, nil)
		return
	}
	if err := b.player.Stop(); err != nil {
		b.logger.PrintError("mpris stop", err)
	}
}

func (b *Bridge) Next() {
	if !b.local() {
		b.send(remote.CmdNext, nil)
		return
	}
	if err := b.player.Next(); err != nil {
		b.logger.PrintError("mpris next", err)
	}
}

func (b *Bridge) Previous() {
	if !b.local() {
		b.send(remote.CmdPrev, nil)
		return
	}
	if err := b.player.Prev(); err != nil {
		b.logger.PrintError("mpris previous", err)
	}
}

// Seek is relative, in microseconds, per the interface.
func (b *Bridge) Seek(offsetUs int64) {
	if !b.local() {
		rs, ok := b.remoteState()
		if !ok {
			return
		}
		target := rs.Position + float64(offsetUs)/1e6
		if target < 0 {
			target = 0
		}
		b.send(remote.CmdSeek, func(cmd *remote.Command) {
			cmd.Seek = target
		})
		return
	}
	target := b.store.Status().Position + float64(offsetUs)/1e6
	if target < 0 {
		target = 0
	}
	if err := b.player.Seek(target); err != nil {
		b.logger.PrintError("mpris seek", err)
	}
}

func (b *Bridge) SetPosition(trackID dbus.ObjectPath, positionUs int64) {
	target := float64(positionUs) / 1e6
	if !b.local() {
		b.send(remote.CmdSeek, func(cmd *remote.Command) {
			cmd.Seek = target
		})
		return
	}
	if err := b.player.Seek(target); err != nil {
		b.logger.PrintError("mpris setposition", err)
	}
}

func (b *Bridge) OpenUri(string) {
	// Stream URLs come from the library server, not the desktop.
}

func (b *Bridge) volumeChange(c *prop.Change) *dbus.Error {
	fVol, ok := c.Value.(float64)
	if !ok {
		return nil
	}
	percent := int(math.Round(fVol * 100))
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	if !b.local() {
		b.send(remote.CmdVolume, func(cmd *remote.Command) {
			cmd.Volume = percent
		})
		return nil
	}
	if err := b.player.SetVolume(percent); err != nil {
		b.logger.PrintError("mpris volume", err)
	}
	return nil
}

func (b *Bridge) emitChanged() {
	changed := map[string]interface{}{
		"Metadata":       metadataOf(b.store.Current()),
		"PlaybackStatus": statusOf(b.store),
	}
	err := b.dbus.Emit("/org/mpris/MediaPlayer2", "org.freedesktop.DBus.Properties.PropertiesChanged",
		"org.mpris.MediaPlayer2.Player", changed, []string{})
	if err != nil {
		b.logger.PrintError("mpris emit", err)
	}
}

func statusOf(st *playback.Store) string {
	switch {
	case st.Current().IsZero():
		return "Stopped"
	case st.Status().Playing:
		return "Playing"
	default:
		return "Paused"
	}
}

func metadataOf(it playback.Item) map[string]interface{} {
	md := map[string]interface{}{
		"mpris:trackid":     "",
		"mpris:length":      int64(it.Duration * 1e6),
		"xesam:album":       it.Album,
		"xesam:albumArtist": "",
		"xesam:artist":      []string{it.Artist},
		"xesam:composer":    []string{},
		"xesam:genre":       []string{},
		"xesam:title":       it.Title,
		"xesam:trackNumber": int(0),
	}
	if !it.IsZero() {
		md["mpris:trackid"] = it.ID
	}
	return md
}
