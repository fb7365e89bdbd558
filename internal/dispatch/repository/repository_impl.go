package repository

import (
	"context"
	"time"

	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *domain.DispatchRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dispatch_records (
			id, org_id, asset_id, tier_key, channel, recipient, outcome,
			provider_ref, attempts, sent_at, acknowledged_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.OrgID,
		rec.AssetID,
		rec.TierKey,
		rec.Channel,
		rec.Recipient,
		rec.Outcome,
		rec.ProviderRef,
		rec.Attempts,
		rec.SentAt,
		rec.AcknowledgedAt,
		rec.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.DispatchRecord, error) {
	var rec domain.DispatchRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM dispatch_records WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) FindSent(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID, tierKey string, channel clientdomain.Channel) (*domain.DispatchRecord, error) {
	var rec domain.DispatchRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM dispatch_records
		 WHERE org_id = ? AND asset_id = ? AND tier_key = ? AND channel = ? AND outcome = ?
		 LIMIT 1`,
		orgID,
		assetID,
		tierKey,
		channel,
		domain.OutcomeSent,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) FindByTierOutcome(ctx context.Context, db *gorm.DB, orgID snowflake.ID, tierKey string, outcome domain.Outcome) (*domain.DispatchRecord, error) {
	var rec domain.DispatchRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM dispatch_records
		 WHERE org_id = ? AND tier_key = ? AND outcome = ?
		 LIMIT 1`,
		orgID,
		tierKey,
		outcome,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListDispatchFilter, page pagination.Pagination) ([]*domain.DispatchRecord, error) {
	var recs []*domain.DispatchRecord
	stmt := db.WithContext(ctx).
		Model(&domain.DispatchRecord{}).
		Where("org_id = ?", orgID)
	if filter.AssetID != 0 {
		stmt = stmt.Where("asset_id = ?", filter.AssetID)
	}
	if filter.Outcome != "" {
		stmt = stmt.Where("outcome = ?", filter.Outcome)
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
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repo) ListByAssetSince(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID, since time.Time) ([]*domain.DispatchRecord, error) {
	var recs []*domain.DispatchRecord
	err := db.WithContext(ctx).
		Model(&domain.DispatchRecord{}).
		Where("org_id = ? AND asset_id = ? AND sent_at >= ?", orgID, assetID, since).
		Order("sent_at asc, id asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repo) SentTierKeys(ctx context.Context, db *gorm.DB, orgID snowflake.ID, assetIDs []snowflake.ID) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	var keys []string
	err := db.WithContext(ctx).
		Model(&domain.DispatchRecord{}).
		Where("org_id = ? AND asset_id IN ? AND outcome = ?", orgID, assetIDs, domain.OutcomeSent).
		Distinct().
		Pluck("tier_key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Acknowledge(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE dispatch_records SET acknowledged_at = ?
		 WHERE org_id = ? AND id = ? AND acknowledged_at IS NULL`,
		at,
		orgID,
		id,
	).Error
}
