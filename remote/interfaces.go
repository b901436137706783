package remote

// LocalPlayer is the slice of the player session the remote layer
// drives. Every method runs on the session's loop goroutine; the
// coordinator and runner are only ever invoked from there.
type LocalPlayer interface {
	// Play starts or resumes local audio. The session gates this on
	// the device being the active player.
	Play() error

	// Pause halts local audio. Always safe, never gated.
	Pause() error

	Next() error
	Prev() error

	// Seek moves to an absolute position in seconds.
	Seek(seconds float64) error

	SetVolume(v int) error

	// SetQueue replaces the track queue and starts loading the track
	// at index.
	SetQueue(queue []TrackRef, index int) error

	// PlayTrack makes track current (with optional queue context)
	// and starts loading it.
	PlayTrack(track TrackRef, queue []TrackRef, index int) error

	// ApplyTransfer adopts a transferred playback context: load,
	// settle, seek, then resume if the source was playing.
	ApplyTransfer(t TransferState) error

	// HandleStopSignal forces a local pause and demotes this device
	// to passive, both in the same loop turn. Obeyed unconditionally,
	// even racing a local play intent.
	HandleStopSignal()

	// IsLoading reports whether a media load is in flight.
	IsLoading() bool

	// HasMedia reports whether any media identity is current.
	HasMedia() bool
}
