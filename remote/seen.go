// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package remote

// seenWindow remembers the most recent command IDs so the runner can
// drop redelivered commands. The channel may hand us the same command
// twice after a reconnect; re-running an idempotent command is
// harmless, re-running next/prev skips a track.
type seenWindow struct {
	lookup map[string]*seenNode
	head   *seenNode // newest
	tail   *seenNode // oldest, evicted first
	size   int
}

type seenNode struct {
	next *seenNode
	prev *seenNode
	id   string
}

func newSeenWindow(size int) *seenWindow {
	if size < 1 {
		size = 1
	}
	return &seenWindow{
		lookup: make(map[string]*seenNode),
		size:   size,
	}
}

// Seen records id and reports whether it was already in the window.
func (w *seenWindow) Seen(id string) bool {
	if _, ok := w.lookup[id]; ok {
		return true
	}

	n := &seenNode{id: id, next: w.head}
	if w.head != nil {
		w.head.prev = n
	}
	w.head = n
	if w.tail == nil {
		w.tail = n
	}
	w.lookup[id] = n

	if len(w.lookup) > w.size {
		oldest := w.tail
		w.tail = oldest.prev
		if w.tail != nil {
			w.tail.next = nil
		} else {
			w.head = nil
		}
		delete(w.lookup, oldest.id)
	}
	return false
}
