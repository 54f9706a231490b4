// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actions

import (
	"sync"
	"time"
)

// MaxHistoryEntries is the number of executions kept
const MaxHistoryEntries = 100

// HistoryEntry records one completed execution
type HistoryEntry struct {
	ActionType string `json:"actionType"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"durationMs"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
	Error      string `json:"error,omitempty"`
}

// History is a FIFO of the most recent executions
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	max     int
}

// NewHistory creates a history holding up to max entries
func NewHistory(max int) *History {
	return &History{max: max}
}

// Add appends an entry, evicting the oldest when full
func (h *History) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Record appends an entry for action a with result r
func (h *History) Record(a Action, r Result) {
	h.Add(HistoryEntry{
		ActionType: string(a.Kind()),
		Success:    r.Success,
		DurationMS: r.DurationMS,
		Timestamp:  time.Now().UnixMilli(),
		Error:      r.Error,
	})
}

// Entries returns the entries oldest first
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]HistoryEntry(nil), h.entries...)
}

// Len returns the number of entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear removes all entries
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
