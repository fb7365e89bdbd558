package domain

import (
	"context"
	"time"

	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert appends one dispatch fact. A duplicate-key error on the
	// partial (asset_id, tier_key, channel) unique index means another
	// worker already recorded the success.
	Insert(ctx context.Context, db *gorm.DB, rec *DispatchRecord) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*DispatchRecord, error)
	FindSent(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID, tierKey string, channel clientdomain.Channel) (*DispatchRecord, error)
	FindByTierOutcome(ctx context.Context, db *gorm.DB, orgID snowflake.ID, tierKey string, outcome Outcome) (*DispatchRecord, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListDispatchFilter, page pagination.Pagination) ([]*DispatchRecord, error)
	ListByAssetSince(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID, since time.Time) ([]*DispatchRecord, error)
	SentTierKeys(ctx context.Context, db *gorm.DB, orgID snowflake.ID, assetIDs []snowflake.ID) ([]string, error)
	Acknowledge(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error
}
