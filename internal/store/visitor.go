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

// MemberParams holds the companion's or group representative's details.
type MemberParams struct {
	Name  string
	Phone string
}

// RegisterVisitorParams holds a registration submission. Companion must be
// set exactly when VisitType requires a member entry.
type RegisterVisitorParams struct {
	Name      string
	Phone     string
	Email     string
	VisitType models.VisitType
	Companion *MemberParams
}

// validate collects every missing-required-field reason rather than
// stopping at the first.
func (p *RegisterVisitorParams) validate() map[string]string {
	fields := make(map[string]string)
	if strings.TrimSpace(p.Name) == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(p.Phone) == "" {
		fields["phone"] = "phone is required"
	}
	if strings.TrimSpace(p.Email) == "" {
		fields["email"] = "email is required"
	}
	if !p.VisitType.Valid() {
		fields["visitType"] = "visitType must be one of self, withCompanion, withGroup"
		return fields
	}
	if p.VisitType.RequiresMember() {
		if p.Companion == nil {
			fields["companion"] = "companion details are required for this visit type"
		} else {
			if strings.TrimSpace(p.Companion.Name) == "" {
				fields["companion.name"] = "companion name is required"
			}
			if strings.TrimSpace(p.Companion.Phone) == "" {
				fields["companion.phone"] = "companion phone is required"
			}
		}
	} else if p.Companion != nil {
		fields["companion"] = "companion details are not allowed for self visits"
	}
	return fields
}

// RegisterVisitor creates a visitor record for a session. The returned
// visitor's id is the caller's durable identity for posting messages.
func (s *Store) RegisterVisitor(ctx context.Context, sessionID string, p RegisterVisitorParams) (*models.Visitor, error) {
	if fields := p.validate(); len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	st := s.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := s.gate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	v := &models.Visitor{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Name:      strings.TrimSpace(p.Name),
		Phone:     strings.TrimSpace(p.Phone),
		Email:     strings.ToLower(strings.TrimSpace(p.Email)),
		VisitType: p.VisitType,
		CreatedAt: time.Now().UTC(),
	}
	if p.VisitType.RequiresMember() {
		v.Members = []models.VisitorMember{{
			Name:     strings.TrimSpace(p.Companion.Name),
			Phone:    strings.TrimSpace(p.Companion.Phone),
			Relation: p.VisitType.MemberRelation(),
		}}
	}

	// Create persists the visitor and its member row atomically.
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, fmt.Errorf("store: register visitor: %w", err)
	}

	s.engine.Publish(fanout.Event{
		Type:      fanout.EventVisitorAdded,
		SessionID: sessionID,
		Visitor:   v,
	})
	if s.notify != nil {
		go s.notify.VisitorRegistered(context.Background(), sess, v)
	}
	return v, nil
}

// ListVisitors returns a session's visitors in registration order.
func (s *Store) ListVisitors(ctx context.Context, sessionID string) ([]models.Visitor, error) {
	var visitors []models.Visitor
	err := s.db.WithContext(ctx).
		Preload("Members").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&visitors).Error
	if err != nil {
		return nil, fmt.Errorf("store: list visitors for %s: %w", sessionID, err)
	}
	return visitors, nil
}

// GetVisitor returns a visitor by id, scoped to a session.
func (s *Store) GetVisitor(ctx context.Context, sessionID, visitorID string) (*models.Visitor, error) {
	var v models.Visitor
	err := s.db.WithContext(ctx).
		Preload("Members").
		First(&v, "id = ? AND session_id = ?", visitorID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("visitor")
	}
	if err != nil {
		return nil, fmt.Errorf("store: get visitor %s: %w", visitorID, err)
	}
	return &v, nil
}
