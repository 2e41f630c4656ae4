package store

import (
	"context"

	"github.com/zulandar/qrchat/internal/fanout"
	"github.com/zulandar/qrchat/internal/models"
)

// Snapshot is the full state of a session handed to an observer at
// subscription time, before any incremental events.
type Snapshot struct {
	Session  *models.Session  `json:"session"`
	Visitors []models.Visitor `json:"visitors"`
	Messages []models.Message `json:"messages"`
}

// Subscribe attaches an observer to a session and returns the current full
// snapshot together with the live subscription. Both are produced under
// the session's write lock, so the snapshot plus the event stream has no
// gap and no duplicate: every write is either in the snapshot or delivered
// as an event, never both, never neither.
//
// An inactive session can still be observed; only writes are gated.
func (s *Store) Subscribe(ctx context.Context, sessionID string) (*Snapshot, *fanout.Subscription, error) {
	st := s.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	visitors, err := s.ListVisitors(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	sub := s.engine.Subscribe(sessionID)
	return &Snapshot{Session: sess, Visitors: visitors, Messages: messages}, sub, nil
}
