package auth

import (
	"context"
	"sync"
	"time"
)

// Denylist records token ids that must be rejected before their natural
// expiry. Revocation is monotonic: an id never becomes valid again, so
// last-writer-wins is safe under concurrent access. Entries whose expiry
// has passed may be purged at any time since the signature check alone
// rejects the token afterwards.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type MemoryDenylist struct {
	mu      sync.Mutex
	expiry  map[string]time.Time
	maxSize int
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		expiry:  make(map[string]time.Time),
		maxSize: 10000,
	}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	now := time.Now().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.expiry[tokenID] = expiresAt.UTC()

	if len(d.expiry) > d.maxSize {
		for id, exp := range d.expiry {
			if !exp.After(now) {
				delete(d.expiry, id)
			}
		}
	}

	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	expiresAt, ok := d.expiry[tokenID]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(time.Now().UTC()) {
		delete(d.expiry, tokenID)
		return false, nil
	}

	return true, nil
}
