// Package session enforces one in-flight job per caller session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by Acquire when the session already holds a lease.
var ErrBusy = errors.New("session already has a job in flight")

// Guard hands out at most one lease per session. Leases expire after a TTL so a
// crashed worker cannot lock a session forever.
type Guard interface {
	Acquire(ctx context.Context, session, lease string) error
	// Release frees the session only if lease is the current holder.
	Release(ctx context.Context, session, lease string) error
}

type held struct {
	lease   string
	expires time.Time
}

// MemoryGuard is a process-local Guard used when Redis is not configured.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[string]held
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		ttl:  ttl,
		held: make(map[string]held),
		now:  time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, session, lease string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if h, ok := g.held[session]; ok && (g.ttl <= 0 || now.Before(h.expires)) {
		return ErrBusy
	}
	g.held[session] = held{lease: lease, expires: now.Add(g.ttl)}
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, session, lease string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.held[session]; ok && h.lease == lease {
		delete(g.held, session)
	}
	return nil
}
