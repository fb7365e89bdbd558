// Package domain contains persistence models for clients and their
// notification channel preferences.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Channel enumerates notification transports.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelInApp    Channel = "IN_APP"
)

// ValidChannel reports whether the channel is a known transport.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelInApp:
		return true
	}
	return false
}

// Client owns renewable assets and receives renewal reminders.
type Client struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	OrgID        snowflake.ID      `gorm:"not null;index"`
	Name         string            `gorm:"type:text;not null"`
	Email        string            `gorm:"type:text"`
	Phone        string            `gorm:"type:text"`
	NotifyOptOut bool              `gorm:"not null;default:false"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

// ChannelPreference is one ordered step in a client's notification chain.
// DelayHours is the acknowledgment window before the dispatcher advances
// to the next step.
type ChannelPreference struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	ClientID   snowflake.ID `gorm:"not null;index"`
	Channel    Channel      `gorm:"type:text;not null"`
	Priority   int          `gorm:"not null"`
	DelayHours int          `gorm:"not null;default:24"`
	Enabled    bool         `gorm:"not null;default:true"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChannelPreference) TableName() string { return "channel_preferences" }
