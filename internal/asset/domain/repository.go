package domain

import (
	"context"
	"time"

	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, asset *RenewableAsset) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*RenewableAsset, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListAssetFilter, page pagination.Pagination) ([]*RenewableAsset, error)
	// ListSchedulable returns every asset with a usable expiry date.
	ListSchedulable(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*RenewableAsset, error)
	// ListInvalidExpiry returns assets excluded from scheduling.
	ListInvalidExpiry(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*RenewableAsset, error)
	// ApplyRenewal writes the renewal with an optimistic updated_at check.
	// Returns false when the row changed since expectedUpdatedAt.
	ApplyRenewal(ctx context.Context, db *gorm.DB, asset *RenewableAsset, expectedUpdatedAt time.Time) (bool, error)
}
