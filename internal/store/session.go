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

// CreateSessionParams holds the fields an organizer sets when opening a
// session.
type CreateSessionParams struct {
	Name      string
	PosterURL string
	CreatedBy string
}

// OptionalString distinguishes "leave unchanged" (Set false) from
// "overwrite, possibly with empty" (Set true).
type OptionalString struct {
	Set   bool
	Value string
}

// UpdateSessionParams holds the mutable display metadata of a session.
// Unset fields are left unchanged; a set field with an empty value clears
// it.
type UpdateSessionParams struct {
	Name      OptionalString
	PosterURL OptionalString
}

// CreateSession opens a new session with a fresh id and IsActive true.
func (s *Store) CreateSession(ctx context.Context, p CreateSessionParams) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(p.Name),
		PosterURL: strings.TrimSpace(p.PosterURL),
		IsActive:  true,
		CreatedBy: p.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	s.engine.Publish(fanout.Event{
		Type:      fanout.EventSessionUpdated,
		SessionID: sess.ID,
		Session:   sess,
	})
	return sess, nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("session")
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns all sessions, most recent first. The ordering is
// load-bearing: the organizer dashboard selects the newest session by
// default.
func (s *Store) ListSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSession overwrites the given display metadata fields. Last write
// wins; there is no conflict resolution between concurrent organizer edits.
func (s *Store) UpdateSession(ctx context.Context, id string, p UpdateSessionParams) (*models.Session, error) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name.Set {
		sess.Name = strings.TrimSpace(p.Name.Value)
	}
	if p.PosterURL.Set {
		sess.PosterURL = strings.TrimSpace(p.PosterURL.Value)
	}
	if err := s.db.WithContext(ctx).Save(sess).Error; err != nil {
		return nil, fmt.Errorf("store: update session %s: %w", id, err)
	}
	s.engine.Publish(fanout.Event{
		Type:      fanout.EventSessionUpdated,
		SessionID: id,
		Session:   sess,
	})
	return sess, nil
}

// SetActive toggles the write gate for a session. Deactivation blocks
// future registrations and messages; records accepted earlier stay
// readable. Idempotent when the session is already in the requested state.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (*models.Session, error) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.IsActive = active
	if err := s.db.WithContext(ctx).Model(sess).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("store: set active %s: %w", id, err)
	}
	s.engine.Publish(fanout.Event{
		Type:      fanout.EventSessionUpdated,
		SessionID: id,
		Session:   sess,
	})
	return sess, nil
}

// DeleteSession removes a session. Its visitors and messages are left
// behind as orphans, unreachable through the gate; the sweeper purges them
// on schedule.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	res := s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("session")
	}
	s.dropState(id)
	return nil
}
