package models

import "time"

// Message is a one-way, visitor-to-organizer text record within a session.
// Messages are immutable and never deleted while their session exists.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"sessionId"`
	VisitorID string    `gorm:"size:36;not null;index" json:"userId"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	SentAt    time.Time `gorm:"index" json:"sentAt"`
}

// Before reports whether m sorts ahead of other in the canonical
// (SentAt, ID) message order. The id comparison breaks ties when two
// messages carry the same timestamp.
func (m Message) Before(other Message) bool {
	if !m.SentAt.Equal(other.SentAt) {
		return m.SentAt.Before(other.SentAt)
	}
	return m.ID < other.ID
}
