package player

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorusfm/chorus/library"
)

func TestLargeSkipSeeksImmediately(t *testing.T) {
	h := newHarness(t)
	h.startItem(trackItem("t1"))

	require.NoError(t, h.s.Seek(60))
	assert.Equal(t, []float64{60}, h.eng.Seeks())
	assert.Equal(t, 60.0, h.st.Status().Position)
}

func TestSeekClampsToDuration(t *testing.T) {
	h := newHarness(t)
	h.startItem(trackItem("t1"))

	require.NoError(t, h.s.Seek(500))
	assert.Equal(t, []float64{180}, h.eng.Seeks())
	assert.Equal(t, 180.0, h.st.Status().Position)
}

func TestScrubCollapsesToLastTarget(t *testing.T) {
	h := newHarness(t)
	h.startItem(trackItem("t1"))
	h.eng.EmitTimeUpdate(100)
	h.waitFor(func() bool { return h.st.Status().Position == 100 })

	// A drag across the progress bar: three fine targets in quick
	// succession. Only the last one may reach the engine.
	require.NoError(t, h.s.Seek(101))
	require.NoError(t, h.s.Seek(102))
	require.NoError(t, h.s.Seek(103))

	h.waitFor(func() bool { return len(h.eng.Seeks()) > 0 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []float64{103}, h.eng.Seeks())
	assert.Equal(t, 103.0, h.st.Status().Position)
}

func TestSeekLockDropsStalePosition(t *testing.T) {
	h := newHarness(t)
	h.startItem(trackItem("t1"))

	require.NoError(t, h.s.Seek(90))
	// A position report from before the seek arrives late; it must
	// not yank the bar back.
	h.eng.EmitTimeUpdate(45)
	h.onLoop(func() {})
	assert.Equal(t, 90.0, h.st.Status().Position)

	// After the lock expires engine positions flow again.
	time.Sleep(80 * time.Millisecond)
	h.eng.EmitTimeUpdate(91)
	h.waitFor(func() bool { return h.st.Status().Position == 91 })
}

func TestPodcastCachedSeekVerifiesWithoutReload(t *testing.T) {
	h := newHarness(t)
	h.srv.setCache(library.CacheStatus{Cached: true})
	h.startItem(episodeItem("p1", "e1"))

	require.NoError(t, h.s.Seek(200))
	h.waitFor(func() bool { return len(h.eng.Seeks()) == 1 })
	assert.Equal(t, 200.0, h.eng.Seeks()[0])

	// Give the verification window time to pass.
	time.Sleep(60 * time.Millisecond)
	assert.NotContains(t, h.eng.Timeline(), "reload")
	assert.False(t, h.st.Status().Buffering)
}

func TestPodcastUncachedSeekBuffersAndRecovers(t *testing.T) {
	h := newHarness(t)
	h.srv.setCache(library.CacheStatus{Downloading: true, DownloadProgress: 0.2})
	ep := episodeItem("p1", "e1")
	h.startItem(ep)
	h.eng.SetCachedUpTo(25)

	require.NoError(t, h.s.Seek(120))

	// The engine accepted the seek but the decoder stuck before the
	// boundary: silent failure. The session pauses and waits.
	h.waitFor(func() bool { return h.st.Status().Buffering })
	assert.False(t, h.eng.IsPlaying())
	st := h.st.Status()
	assert.True(t, st.HasTarget)
	assert.Equal(t, 120.0, st.TargetSeek)

	// Server finishes caching; the next poll reloads and re-seeks.
	h.eng.SetCachedUpTo(math.Inf(1))
	h.srv.setCache(library.CacheStatus{Cached: true})

	h.waitFor(func() bool {
		for _, step := range h.eng.Timeline() {
			if step == "reload" {
				return true
			}
		}
		return false
	})
	h.eng.CompleteLoad(streamURLFor(ep.ID), 3600)

	h.waitFor(func() bool { return h.eng.IsPlaying() })
	seeks := h.eng.Seeks()
	assert.Equal(t, 120.0, seeks[len(seeks)-1])
	assert.False(t, h.st.Status().Buffering)
	assert.Equal(t, 120.0, h.st.Status().Position)
}

func TestNewMediaCancelsCachePolling(t *testing.T) {
	h := newHarness(t)
	h.srv.setCache(library.CacheStatus{Downloading: true})
	h.startItem(episodeItem("p1", "e1"))
	h.eng.SetCachedUpTo(25)

	require.NoError(t, h.s.Seek(120))
	h.waitFor(func() bool { return h.st.Status().Buffering })
	before := h.srv.cacheStatusCalls()
	require.Positive(t, before)

	h.onLoop(func() { h.st.SetItem(trackItem("t1")) })
	h.waitFor(func() bool { return h.eng.LoadedURL() == streamURLFor("t1") })

	// Polling for the abandoned episode stops; at most one already
	// scheduled probe may still land.
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, h.srv.cacheStatusCalls(), before+1)
	assert.NotContains(t, h.eng.Timeline(), "reload")
}
