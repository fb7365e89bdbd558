package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rec *EscalationRecord) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*EscalationRecord, error)
	FindOpenByAsset(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID) (*EscalationRecord, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, includeResolved bool) ([]*EscalationRecord, error)
	MarkNotified(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error
	// ResolveOpenByAsset closes the open escalation for the asset, if any.
	ResolveOpenByAsset(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID, at time.Time) error
	ResolveByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error
}
