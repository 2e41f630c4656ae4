// Package fanout implements the live update engine that pushes session
// changes to attached observers without polling.
package fanout

import (
	"sync"

	"github.com/zulandar/qrchat/internal/models"
)

// EventType identifies the kind of incremental update.
type EventType string

const (
	EventSessionUpdated EventType = "session_updated"
	EventVisitorAdded   EventType = "visitor_added"
	EventMessageAdded   EventType = "message_added"
)

// Event is one incremental update delivered to observers of a session.
// Exactly one of Session, Visitor, Message is set, matching Type.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Session   *models.Session `json:"session,omitempty"`
	Visitor   *models.Visitor `json:"visitor,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
}

// DefaultBuffer is the per-subscriber channel capacity. A subscriber whose
// buffer fills up is evicted rather than allowed to block publishers.
const DefaultBuffer = 64

// Engine maintains per-session subscriber sets and delivers events to them.
// Publishing never blocks: slow consumers are dropped.
type Engine struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*Subscription]struct{}
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Buffer int // per-subscriber channel capacity, defaults to DefaultBuffer
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) *Engine {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Engine{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe attaches a new observer to a session. The caller receives events
// on Events() until it calls Close or is evicted as a slow consumer.
func (e *Engine) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		engine:    e,
		sessionID: sessionID,
		ch:        make(chan Event, e.buffer),
	}
	e.mu.Lock()
	set, ok := e.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		e.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	e.mu.Unlock()
	return sub
}

// Publish delivers evt to every live observer of evt.SessionID. Observers
// whose buffer is full are evicted; their channel closes as the terminal
// signal.
func (e *Engine) Publish(evt Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.subs[evt.SessionID] {
		select {
		case sub.ch <- evt:
		default:
			sub.evicted = true
			e.removeLocked(sub)
			sub.closeOnce.Do(func() { close(sub.ch) })
		}
	}
}

// SubscriberCount returns the number of live observers for a session.
func (e *Engine) SubscriberCount(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs[sessionID])
}

// removeLocked detaches sub from the engine. Caller holds e.mu.
func (e *Engine) removeLocked(sub *Subscription) {
	set := e.subs[sub.sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(e.subs, sub.sessionID)
	}
}

// Subscription is one observer's attachment to a session.
type Subscription struct {
	engine    *Engine
	sessionID string
	ch        chan Event
	closeOnce sync.Once
	evicted   bool // guarded by engine.mu
}

// SessionID returns the session this subscription observes.
func (s *Subscription) SessionID() string { return s.sessionID }

// Events returns the delivery channel. It closes when the subscription is
// closed or the observer is evicted.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close detaches the observer and closes the delivery channel. Idempotent.
func (s *Subscription) Close() {
	s.engine.mu.Lock()
	s.engine.removeLocked(s)
	s.engine.mu.Unlock()
	s.closeOnce.Do(func() { close(s.ch) })
}

// Evicted reports whether the subscription was dropped as a slow consumer.
func (s *Subscription) Evicted() bool {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.evicted
}
