package simulated

import (
	"context"
	"sync"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// SessionProvider holds the operator session and notifies subscribers of changes
type SessionProvider struct {
	mu          sync.RWMutex
	session     domain.Session
	nextID      int
	subscribers map[int]func(domain.Session)
}

// NewSessionProvider creates a new SessionProvider instance
func NewSessionProvider(session domain.Session) *SessionProvider {
	return &SessionProvider{
		session:     session,
		subscribers: make(map[int]func(domain.Session)),
	}
}

// Snapshot returns the current session
func (p *SessionProvider) Snapshot(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session, nil
}

// Subscribe registers fn for session changes
func (p *SessionProvider) Subscribe(fn func(domain.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subscribers[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

// Set replaces the session and notifies subscribers outside the lock
func (p *SessionProvider) Set(session domain.Session) {
	p.mu.Lock()
	p.session = session
	fns := make([]func(domain.Session), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}
