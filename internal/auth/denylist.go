package auth

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	Add(ctx context.Context, tokenID string, until time.Time) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (d *MemoryDenylist) Add(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.purgeLocked()
	d.entries[tokenID] = until
	return nil
}

func (d *MemoryDenylist) Contains(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !d.now().Before(until) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDenylist) purgeLocked() {
	now := d.now()
	for id, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, id)
		}
	}
}
