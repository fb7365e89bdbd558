// Package inapp stores notifications for the dashboard inbox. Delivery
// is a database write; the UI polls for unread rows.
package inapp

import (
	"context"
	"time"

	"github.com/agencyops/renewd/internal/clock"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is one dashboard inbox entry. Recipient is the user or
// client identifier the step was routed to.
type Notification struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	Recipient  string            `gorm:"type:text;not null;index"`
	TemplateID string            `gorm:"type:text;not null"`
	Payload    datatypes.JSONMap `gorm:"type:jsonb"`
	ReadAt     *time.Time        `gorm:""`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Notification) TableName() string { return "inapp_notifications" }

type Sender struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewSender(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Sender {
	return &Sender{db: db, genID: genID, clock: clk}
}

func (s *Sender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	payload := make(datatypes.JSONMap, len(variables))
	for k, v := range variables {
		payload[k] = v
	}

	note := Notification{
		ID:         s.genID.Generate(),
		Recipient:  recipient,
		TemplateID: templateID,
		Payload:    payload,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return "", err
	}
	return note.ID.String(), nil
}
