// Package domain contains persistence models for renewable assets.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind enumerates the asset registries tracked for renewal.
type Kind string

const (
	KindDomain      Kind = "DOMAIN"
	KindHosting     Kind = "HOSTING"
	KindMaintenance Kind = "MAINTENANCE"
)

// ValidKind reports whether the kind is one of the known registries.
func ValidKind(k Kind) bool {
	switch k {
	case KindDomain, KindHosting, KindMaintenance:
		return true
	}
	return false
}

// RenewableAsset is any entity with a renewal cycle. ExpiresAt is nullable
// so rows with missing or unparseable dates can be kept out of scheduling
// and surfaced on the data-quality report instead.
type RenewableAsset struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	OrgID         snowflake.ID      `gorm:"not null;index"`
	Kind          Kind              `gorm:"type:text;not null;index"`
	Name          string            `gorm:"type:text;not null"`
	ClientID      snowflake.ID      `gorm:"not null;index"`
	OwnerID       *snowflake.ID     `gorm:""`
	ExpiresAt     *time.Time        `gorm:"index"`
	AutoRenew     bool              `gorm:"not null;default:false"`
	LastRenewalAt *time.Time        `gorm:""`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RenewableAsset) TableName() string { return "renewable_assets" }

// CycleStart returns the start of the current reminder cycle. The cycle
// restarts on each renewal so a renewed asset gets fresh reminders.
func (a *RenewableAsset) CycleStart() time.Time {
	if a.LastRenewalAt != nil {
		return a.LastRenewalAt.UTC()
	}
	return a.CreatedAt.UTC()
}

// Schedulable reports whether the asset carries a usable expiry date.
func (a *RenewableAsset) Schedulable() bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.IsZero()
}
