// Package history keeps the ordered conversation turns of each session.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Store maps session ids to their turns. A session that was never written
// reads as empty. Append adds all given turns or none of them.
type Store interface {
	Turns(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...domain.Turn) error
	Sessions(ctx context.Context) ([]string, error)
}

// Memory is the in-process Store. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Turn
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]domain.Turn)}
}

// Turns returns a copy of the session's turns in chronological order.
func (m *Memory) Turns(_ context.Context, sessionID string) ([]domain.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Turn{}, m.sessions[sessionID]...), nil
}

// Append adds turns to the end of the session under one lock.
func (m *Memory) Append(_ context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stamped := make([]domain.Turn, len(turns))
	for i, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		stamped[i] = t
	}
	m.mu.Lock()
	m.sessions[sessionID] = append(m.sessions[sessionID], stamped...)
	m.mu.Unlock()
	return nil
}

// Sessions lists the ids of every session with at least one turn.
func (m *Memory) Sessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// Locks hands out one mutex per session id so that requests for the same
// session run one at a time.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the session is free and returns the unlock function.
// Entries are dropped once nobody holds or waits on them.
func (l *Locks) Lock(sessionID string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
