package models

import "time"

// VisitType classifies who accompanies a visitor to a session.
type VisitType string

const (
	VisitSelf          VisitType = "self"
	VisitWithCompanion VisitType = "withCompanion"
	VisitWithGroup     VisitType = "withGroup"
)

// Relation values recorded on the additional member entry.
const (
	RelationCompanion = "companion"
	RelationMember    = "member"
)

// Valid reports whether t is a known visit type.
func (t VisitType) Valid() bool {
	switch t {
	case VisitSelf, VisitWithCompanion, VisitWithGroup:
		return true
	}
	return false
}

// RequiresMember reports whether registrations of this type must carry
// exactly one additional member entry.
func (t VisitType) RequiresMember() bool {
	return t == VisitWithCompanion || t == VisitWithGroup
}

// MemberRelation returns the relation string stored on the additional
// member entry for this visit type, or "" for self visits.
func (t VisitType) MemberRelation() string {
	switch t {
	case VisitWithCompanion:
		return RelationCompanion
	case VisitWithGroup:
		return RelationMember
	}
	return ""
}

// Visitor is a person registered once for a specific session. Visitors are
// immutable after creation and are removed only when their session's
// orphaned records are purged.
type Visitor struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"sessionId"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Phone     string    `gorm:"size:32;not null" json:"phone"`
	Email     string    `gorm:"size:256;not null" json:"email"`
	VisitType VisitType `gorm:"size:16;not null" json:"visitType"`
	CreatedAt time.Time `json:"createdAt"`

	Members []VisitorMember `gorm:"foreignKey:VisitorID" json:"additionalMembers"`
}

// VisitorMember holds the details of a companion or group representative
// registered alongside a visitor. Exactly one row exists for visit types
// other than self, none otherwise.
type VisitorMember struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	VisitorID string `gorm:"size:36;not null;index" json:"-"`
	Name      string `gorm:"size:256;not null" json:"name"`
	Phone     string `gorm:"size:32;not null" json:"phone"`
	Relation  string `gorm:"size:32;not null" json:"relation"`
}
