package player

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chorusfm/chorus/engine/enginetest"
	"github.com/chorusfm/chorus/library"
	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/store"
)

func testTimings() Timings {
	return Timings{
		SeekLock:           60 * time.Millisecond,
		LargeSkip:          10,
		ScrubDebounce:      30 * time.Millisecond,
		SeekVerify:         10 * time.Millisecond,
		SeekTolerance:      5,
		UncachedCheck:      20 * time.Millisecond,
		SilentFailBoundary: 30,
		CachePoll:          15 * time.Millisecond,
		CachePollCap:       50,
		TransferSettle:     20 * time.Millisecond,
		ProgressInterval:   time.Hour,
	}
}

type progressSave struct {
	itemID   string
	position float64
	duration float64
	finished bool
}

// fakeServer answers resolution, cache and progress calls from maps
// the test mutates mid-flight.
type fakeServer struct {
	mu         sync.Mutex
	resolveErr map[string]error
	streamGate chan struct{} // when set, StreamURL blocks until closed
	cache      library.CacheStatus
	cacheCalls int
	progress   map[string]library.Progress
	saved      []progressSave
	saveErr    error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		resolveErr: map[string]error{},
		progress:   map[string]library.Progress{},
	}
}

func streamURLFor(id string) string { return "http://srv/stream/" + id }

func (f *fakeServer) StreamURL(item playback.Item) (library.StreamInfo, error) {
	f.mu.Lock()
	gate := f.streamGate
	err := f.resolveErr[item.ID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return library.StreamInfo{}, err
	}
	return library.StreamInfo{URL: streamURLFor(item.ID), Available: true}, nil
}

func (f *fakeServer) GetCacheStatus(podcastID, episodeID string) (library.CacheStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheCalls++
	return f.cache, nil
}

func (f *fakeServer) setCache(c library.CacheStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = c
}

func (f *fakeServer) cacheStatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cacheCalls
}

func (f *fakeServer) SaveProgress(itemID string, position, duration float64, finished bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, progressSave{itemID, position, duration, finished})
	return nil
}

func (f *fakeServer) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeServer) savedProgress() []progressSave {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]progressSave, len(f.saved))
	copy(out, f.saved)
	return out
}

func (f *fakeServer) LoadProgress(itemID string) (library.Progress, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[itemID]
	return p, ok, nil
}

// fakeJournal is an in-memory Journal.
type fakeJournal struct {
	mu   sync.Mutex
	rows map[string]store.Progress
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{rows: map[string]store.Progress{}}
}

func (j *fakeJournal) UpsertProgress(p store.Progress) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	p.Synced = false
	j.rows[p.ItemID] = p
	return nil
}

func (j *fakeJournal) Progress(itemID string) (store.Progress, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.rows[itemID]
	return p, ok, nil
}

func (j *fakeJournal) PendingSync() ([]store.Progress, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []store.Progress
	for _, p := range j.rows {
		if !p.Synced {
			out = append(out, p)
		}
	}
	return out, nil
}

func (j *fakeJournal) MarkSynced(itemID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p, ok := j.rows[itemID]; ok {
		p.Synced = true
		j.rows[itemID] = p
	}
	return nil
}

func (j *fakeJournal) row(itemID string) (store.Progress, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.rows[itemID]
	return p, ok
}

type fakeGate struct {
	mu      sync.Mutex
	flushes int
	blocked int
}

func (g *fakeGate) Flush() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flushes++
}

func (g *fakeGate) HandleBlockedPlay() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocked++
}

func (g *fakeGate) blockedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

type fakeArbiter struct {
	st *playback.Store
}

func (a *fakeArbiter) BecomeActivePlayer() { a.st.SetActivePlayer(true) }

type harness struct {
	t    *testing.T
	eng  *enginetest.Fake
	st   *playback.Store
	srv  *fakeServer
	jrnl *fakeJournal
	gate *fakeGate
	s    *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		eng:  enginetest.New(),
		st:   playback.NewStore(),
		srv:  newFakeServer(),
		jrnl: newFakeJournal(),
		gate: &fakeGate{},
	}
	h.s = NewSession(h.eng, h.st, h.srv, h.jrnl, logger.Init(), testTimings())
	h.s.AttachRemote(h.gate, &fakeArbiter{st: h.st})
	h.s.Start()
	t.Cleanup(h.s.Shutdown)
	h.st.SetActivePlayer(true)
	return h
}

// onLoop runs fn on the session loop and waits, so tests can read
// loop-owned fields without racing.
func (h *harness) onLoop(fn func()) { h.s.call(fn) }

func (h *harness) waitFor(cond func() bool) {
	h.t.Helper()
	require.Eventually(h.t, cond, 2*time.Second, 2*time.Millisecond)
}

// startItem selects it, marks the intent to play, and completes the
// engine load.
func (h *harness) startItem(it playback.Item) {
	h.t.Helper()
	h.onLoop(func() {
		h.st.SetItem(it)
		h.st.SetPlaying(true)
	})
	h.waitFor(func() bool {
		return len(h.eng.Loads()) > 0 && h.eng.LoadedURL() == streamURLFor(it.ID)
	})
	h.eng.CompleteLoad(streamURLFor(it.ID), it.Duration)
	h.waitFor(func() bool { return h.eng.IsPlaying() })
}

func trackItem(id string) playback.Item {
	return playback.Item{Kind: playback.KindTrack, ID: id, Title: "Track " + id, Duration: 180, HasLocalFile: true}
}

func bookItem(id string) playback.Item {
	return playback.Item{Kind: playback.KindAudiobook, ID: id, Title: "Book " + id, Duration: 7200}
}

func episodeItem(podcastID, episodeID string) playback.Item {
	return playback.Item{Kind: playback.KindPodcast, ID: playback.EpisodeID(podcastID, episodeID), Title: "Episode " + episodeID, Duration: 3600}
}
