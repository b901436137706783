// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package player

import (
	"time"

	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/store"
)

func (s *Session) progressLoop(quit chan struct{}) {
	tick := time.NewTicker(s.t.ProgressInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			s.Post(func() { s.reportProgress(true) })
		case <-quit:
			return
		case <-s.done:
			return
		}
	}
}

// reportProgress persists the listening position for resumable
// media. The periodic tick passes onlyWhilePlaying; pause and stop
// flush unconditionally.
func (s *Session) reportProgress(onlyWhilePlaying bool) {
	cur := s.store.Current()
	if cur.Kind != playback.KindAudiobook && cur.Kind != playback.KindPodcast {
		return
	}
	st := s.store.Status()
	if onlyWhilePlaying && !st.Playing {
		return
	}
	if st.Position <= 0 {
		return
	}
	s.saveProgress(cur, st.Position, st.Duration, false)
}

// saveProgress journals first, then pushes to the server off-loop. A
// failed push leaves the row unsynced; the next successful one drains
// the backlog.
func (s *Session) saveProgress(it playback.Item, pos, dur float64, finished bool) {
	if it.IsZero() {
		return
	}
	if s.journal != nil {
		err := s.journal.UpsertProgress(store.Progress{
			ItemID:    it.ID,
			Kind:      string(it.Kind),
			Position:  pos,
			Duration:  dur,
			Finished:  finished,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			s.log.PrintError("journal "+it.ID, err)
		}
	}
	go func() {
		if err := s.server.SaveProgress(it.ID, pos, dur, finished); err != nil {
			s.log.PrintError("saveProgress "+it.ID, err)
			return
		}
		if s.journal == nil {
			return
		}
		s.Post(func() { s.drainJournal(it.ID) })
	}()
}

// drainJournal marks the row just pushed and retries any rows a
// previous offline stretch left behind.
func (s *Session) drainJournal(justSaved string) {
	if err := s.journal.MarkSynced(justSaved); err != nil {
		s.log.PrintError("journal sync", err)
	}
	pending, err := s.journal.PendingSync()
	if err != nil {
		s.log.PrintError("journal pending", err)
		return
	}
	for _, p := range pending {
		if p.ItemID == justSaved {
			continue
		}
		p := p
		go func() {
			if err := s.server.SaveProgress(p.ItemID, p.Position, p.Duration, p.Finished); err != nil {
				return
			}
			s.Post(func() {
				if err := s.journal.MarkSynced(p.ItemID); err != nil {
					s.log.PrintError("journal sync", err)
				}
			})
		}()
	}
}
