// Package domain contains escalation records and the escalation decision
// rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reason records why an escalation was raised.
type Reason string

const (
	ReasonExpired          Reason = "EXPIRED"
	ReasonUnackedReminders Reason = "UNACKNOWLEDGED_REMINDERS"
)

// EscalationRecord tracks one escalation cycle for an overdue asset. An
// open record (resolved_at IS NULL) means the asset is in the Escalated
// state; resolution happens when a renewal moves the asset out of
// Expired, or by manual operator action.
type EscalationRecord struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrgID          snowflake.ID `gorm:"not null;index"`
	AssetID        snowflake.ID `gorm:"not null;index"`
	EscalatedTo    snowflake.ID `gorm:"not null"`
	Reason         Reason       `gorm:"type:text;not null"`
	RaisedAt       time.Time    `gorm:"not null"`
	LastNotifiedAt time.Time    `gorm:"not null"`
	ResolvedAt     *time.Time   `gorm:"index"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EscalationRecord) TableName() string { return "escalation_records" }

// Open reports whether the escalation cycle is still active.
func (e *EscalationRecord) Open() bool {
	return e != nil && e.ResolvedAt == nil
}
