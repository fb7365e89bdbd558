package repository

import (
	"context"
	"time"

	"github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, asset *domain.RenewableAsset) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO renewable_assets (
			id, org_id, kind, name, client_id, owner_id, expires_at,
			auto_renew, last_renewal_at, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID,
		asset.OrgID,
		asset.Kind,
		asset.Name,
		asset.ClientID,
		asset.OwnerID,
		asset.ExpiresAt,
		asset.AutoRenew,
		asset.LastRenewalAt,
		asset.Metadata,
		asset.CreatedAt,
		asset.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.RenewableAsset, error) {
	var asset domain.RenewableAsset
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM renewable_assets WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&asset).Error
	if err != nil {
		return nil, err
	}
	if asset.ID == 0 {
		return nil, nil
	}
	return &asset, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListAssetFilter, page pagination.Pagination) ([]*domain.RenewableAsset, error) {
	var assets []*domain.RenewableAsset
	stmt := db.WithContext(ctx).
		Model(&domain.RenewableAsset{}).
		Where("org_id = ?", orgID)
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt,
			cursor.CreatedAt,
			cursor.ID,
		)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *repo) ListSchedulable(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.RenewableAsset, error) {
	var assets []*domain.RenewableAsset
	err := db.WithContext(ctx).
		Model(&domain.RenewableAsset{}).
		Where("org_id = ? AND expires_at IS NOT NULL", orgID).
		Order("expires_at asc, id asc").
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *repo) ListInvalidExpiry(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.RenewableAsset, error) {
	var assets []*domain.RenewableAsset
	err := db.WithContext(ctx).
		Model(&domain.RenewableAsset{}).
		Where("org_id = ? AND expires_at IS NULL", orgID).
		Order("created_at desc, id desc").
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *repo) ApplyRenewal(ctx context.Context, db *gorm.DB, asset *domain.RenewableAsset, expectedUpdatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE renewable_assets
		 SET expires_at = ?, last_renewal_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND updated_at = ?`,
		asset.ExpiresAt,
		asset.LastRenewalAt,
		asset.UpdatedAt,
		asset.OrgID,
		asset.ID,
		expectedUpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
