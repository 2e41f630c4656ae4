package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/qrchat/internal/apperr"
	"github.com/zulandar/qrchat/internal/fanout"
	"github.com/zulandar/qrchat/internal/models"
	"gorm.io/gorm"
)

// PostMessage appends a message from a registered visitor to a session's
// log. The assigned timestamp is monotonic within the session, so the
// (SentAt, ID) order is total even under near-simultaneous posts.
func (s *Store) PostMessage(ctx context.Context, sessionID, visitorID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation(map[string]string{"body": "message body is required"})
	}

	st := s.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := s.gate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The sender must be registered in this same session. A visitor id from
	// another session is an unknown sender here, never a valid one.
	var v models.Visitor
	err = s.db.WithContext(ctx).First(&v, "id = ? AND session_id = ?", visitorID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.UnknownSender(visitorID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: resolve sender %s: %w", visitorID, err)
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		VisitorID: visitorID,
		Body:      body,
		SentAt:    st.nextSentAt(s.db.WithContext(ctx), sessionID),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("store: post message: %w", err)
	}

	s.engine.Publish(fanout.Event{
		Type:      fanout.EventMessageAdded,
		SessionID: sessionID,
		Message:   msg,
	})
	if s.notify != nil {
		go s.notify.MessageReceived(context.Background(), sess, &v, msg)
	}
	return msg, nil
}

// ListMessages returns a session's messages in the canonical (SentAt, ID)
// ascending order. This is the one read path whose ordering is a contract;
// fan-out delivery order is not.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sent_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list messages for %s: %w", sessionID, err)
	}
	return msgs, nil
}

// nextSentAt assigns the next message timestamp for a session: the current
// time, bumped forward if the wall clock has not advanced past the previous
// assignment. Caller holds the session lock. The clock is seeded from the
// stored log once per process so restarts never move it backwards.
func (st *sessionState) nextSentAt(db *gorm.DB, sessionID string) time.Time {
	if !st.seeded {
		var last models.Message
		if err := db.Where("session_id = ?", sessionID).
			Order("sent_at DESC").Limit(1).First(&last).Error; err == nil {
			st.lastSent = last.SentAt
		}
		st.seeded = true
	}
	now := time.Now().UTC()
	if !now.After(st.lastSent) {
		now = st.lastSent.Add(time.Microsecond)
	}
	st.lastSent = now
	return now
}
