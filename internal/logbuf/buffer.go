// Package logbuf keeps a bounded, per-keyword rolling buffer of pipeline log
// entries for the /logs polling endpoint.
package logbuf

import (
	"sync"
	"time"
)

// maxEntriesPerKeyword caps each keyword's buffer; older entries are dropped.
const maxEntriesPerKeyword = 1000

// Entry is one structured pipeline log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Keyword   string         `json:"keyword"`
	Context   map[string]any `json:"context,omitempty"`
}

// Buffer holds recent log entries per keyword. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// New builds an empty Buffer.
func New() *Buffer {
	return &Buffer{entries: make(map[string][]Entry)}
}

// Append records an entry for the keyword, evicting the oldest past the cap.
func (b *Buffer) Append(keyword string, e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := append(b.entries[keyword], e)
	if len(buf) > maxEntriesPerKeyword {
		buf = buf[len(buf)-maxEntriesPerKeyword:]
	}
	b.entries[keyword] = buf
}

// Tail returns up to limit of the most recent entries for the keyword, oldest
// first, and whether the keyword has a buffer at all.
func (b *Buffer) Tail(keyword string, limit int) ([]Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.entries[keyword]
	if !ok {
		return nil, false
	}
	if limit > 0 && len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	return append([]Entry(nil), buf...), true
}

// Clear drops the keyword's buffer. Part of the atomic cascade delete.
func (b *Buffer) Clear(keyword string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, keyword)
}
