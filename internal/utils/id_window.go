package utils

import (
	"sync"
	"time"
)

type idEntry struct {
	id string
	at time.Time
}

// IDWindow is a sliding window that remembers which IDs produced the hits,
// so a burst can be acted on as a cohort (e.g. banning every member of a
// join wave).
type IDWindow struct {
	mu      sync.Mutex
	window  time.Duration
	entries []idEntry
}

func NewIDWindow(window time.Duration) *IDWindow {
	return &IDWindow{window: window}
}

// Add records id at now and returns the number of entries still inside the
// window, including the new one.
func (w *IDWindow) Add(id string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.entries = append(w.entries, idEntry{id: id, at: now})
	return len(w.entries)
}

// IDs returns the ids of all entries still inside the window.
func (w *IDWindow) IDs(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	ids := make([]string, 0, len(w.entries))
	for _, entry := range w.entries {
		ids = append(ids, entry.id)
	}
	return ids
}

func (w *IDWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, entry := range w.entries {
		if entry.at.After(cutoff) {
			break
		}
		idx++
	}
	w.entries = w.entries[idx:]
}
