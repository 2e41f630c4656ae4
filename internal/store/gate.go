package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/qrchat/internal/apperr"
	"github.com/zulandar/qrchat/internal/models"
	"gorm.io/gorm"
)

// gate checks that a session exists and is writable, returning the session
// on success. NotFound and SessionClosed are distinct kinds because the
// caller's UI differs: invalid link vs. deactivated session.
func (s *Store) gate(ctx context.Context, sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("session")
	}
	if err != nil {
		return nil, fmt.Errorf("store: load session %s: %w", sessionID, err)
	}
	if !sess.IsActive {
		return nil, apperr.SessionClosed(sessionID)
	}
	return &sess, nil
}

// CanWrite reports whether sessionID accepts registrations and messages:
// the session exists and is active.
func (s *Store) CanWrite(ctx context.Context, sessionID string) bool {
	_, err := s.gate(ctx, sessionID)
	return err == nil
}
