// Package session keeps the per-operator state of a terminal: its cart, which record is
// being edited, and the last completed sale.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/checkout"
	"github.com/safar/go-pos-store/internal/scanner"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is owned by one operator. Requests for the same session are expected to be
// serialised by the caller; Lock/Unlock are provided for that.
type Session struct {
	ID             uuid.UUID
	Cart           *cart.Cart
	EditProductID  *int64
	EditCategoryID *int64
	LastSale       *checkout.Result
	Scans          *scanner.Debouncer

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

type Manager struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*Session
	scanInterval time.Duration
	now          func() time.Time
}

func NewManager(scanInterval time.Duration) *Manager {
	return &Manager{
		sessions:     make(map[uuid.UUID]*Session),
		scanInterval: scanInterval,
		now:          time.Now,
	}
}

func (m *Manager) New() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:       uuid.New(),
		Cart:     cart.New(),
		Scans:    scanner.NewDebouncer(m.scanInterval),
		lastSeen: m.now(),
	}
	m.sessions[s.ID] = s
	return s
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = m.now()
	return s, nil
}

func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire drops sessions unused for longer than idle and returns how many were removed.
func (m *Manager) Expire(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	removed := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunExpiry calls Expire every interval until ctx is done.
func (m *Manager) RunExpiry(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Expire(idle)
		}
	}
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
