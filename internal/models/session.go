package models

import "time"

// Session is an organizer-created context identified by a shareable opaque
// id. Visitors register into a session and send one-way messages that the
// organizer observes live.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:256" json:"name"`
	PosterURL string    `gorm:"size:512" json:"posterUrl"`
	IsActive  bool      `gorm:"not null;index" json:"isActive"`
	CreatedBy string    `gorm:"size:64" json:"createdBy"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
