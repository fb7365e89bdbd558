// Package domain contains the append-only dispatch ledger models.
package domain

import (
	"time"

	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/bwmarrin/snowflake"
)

// Outcome is the terminal result of one dispatch attempt chain.
type Outcome string

const (
	OutcomeSent       Outcome = "SENT"
	OutcomeFailed     Outcome = "FAILED"
	OutcomeTimedOut   Outcome = "TIMED_OUT"
	OutcomeSuppressed Outcome = "SUPPRESSED"
)

// ChannelNone marks suppressed records, where no channel was available.
const ChannelNone clientdomain.Channel = "NONE"

// DispatchRecord is an append-only fact of one notification handed to a
// channel. A partial unique index on (asset_id, tier_key, channel) for
// outcome = 'SENT' enforces at-most-once delivery; records are never
// mutated after the outcome is written, except for the acknowledgment
// timestamp set by the UI.
type DispatchRecord struct {
	ID             snowflake.ID         `gorm:"primaryKey"`
	OrgID          snowflake.ID         `gorm:"not null;index"`
	AssetID        snowflake.ID         `gorm:"not null;index"`
	TierKey        string               `gorm:"type:text;not null;index"`
	Channel        clientdomain.Channel `gorm:"type:text;not null"`
	Recipient      string               `gorm:"type:text"`
	Outcome        Outcome              `gorm:"type:text;not null"`
	ProviderRef    string               `gorm:"type:text"`
	Attempts       int                  `gorm:"not null;default:0"`
	SentAt         time.Time            `gorm:"not null;index"`
	AcknowledgedAt *time.Time           `gorm:""`
	CreatedAt      time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DispatchRecord) TableName() string { return "dispatch_records" }

// Acknowledged reports whether the recipient acted on the notification.
func (d *DispatchRecord) Acknowledged() bool {
	return d.AcknowledgedAt != nil && !d.AcknowledgedAt.IsZero()
}
