package cache

import (
	"context"
	"time"
)

// EventDeduper remembers processed inbound event ids for a fixed window.
type EventDeduper interface {
	// MarkProcessed records id and reports whether it was seen for the first time.
	MarkProcessed(ctx context.Context, id string) (bool, error)
}

// MemoryDeduper keeps event ids in a process-local TTL cache.
type MemoryDeduper struct {
	seen *TTLCache[string, struct{}]
}

// NewMemoryDeduper creates a deduper with the given window.
func NewMemoryDeduper(window time.Duration, clock Clock) *MemoryDeduper {
	return &MemoryDeduper{seen: NewTTLCache[string, struct{}]("event-dedup", window, clock)}
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	return d.seen.SetIfAbsent(id, struct{}{}), nil
}

// StartSweeper evicts expired ids periodically until ctx is done.
func (d *MemoryDeduper) StartSweeper(ctx context.Context, interval time.Duration) {
	d.seen.StartSweeper(ctx, interval)
}
