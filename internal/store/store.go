// Package store implements the session-scoped registration and messaging
// core: session records, visitor registration, the append-only message log,
// the write gate, and snapshot-consistent subscriptions to the fanout
// engine.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/qrchat/internal/fanout"
	"github.com/zulandar/qrchat/internal/models"
	"gorm.io/gorm"
)

// Notifier receives best-effort notifications about new session activity.
// Implementations must not block for long; calls are made outside the
// session lock.
type Notifier interface {
	VisitorRegistered(ctx context.Context, sess *models.Session, v *models.Visitor)
	MessageReceived(ctx context.Context, sess *models.Session, v *models.Visitor, m *models.Message)
}

// Store owns all session-scoped state. Every write and every subscription
// snapshot for one session runs under that session's lock, so writes to
// different sessions never contend and observers see a gap-free stream.
type Store struct {
	db     *gorm.DB
	engine *fanout.Engine
	notify Notifier

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState serializes writes within one session and carries the
// per-session monotonic message clock.
type sessionState struct {
	mu       sync.Mutex
	lastSent time.Time
	seeded   bool
}

// Opts holds parameters for creating a Store.
type Opts struct {
	DB       *gorm.DB
	Engine   *fanout.Engine // defaults to a fresh engine
	Notifier Notifier       // optional
}

// New creates a Store.
func New(opts Opts) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	engine := opts.Engine
	if engine == nil {
		engine = fanout.NewEngine(fanout.EngineOpts{})
	}
	return &Store{
		db:       opts.DB,
		engine:   engine,
		notify:   opts.Notifier,
		sessions: make(map[string]*sessionState),
	}, nil
}

// Engine returns the fanout engine observers attach through.
func (s *Store) Engine() *fanout.Engine { return s.engine }

// state returns the lock/clock record for a session, creating it on first
// use.
func (s *Store) state(sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		s.sessions[sessionID] = st
	}
	return st
}

// dropState forgets a deleted session's lock record.
func (s *Store) dropState(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}
