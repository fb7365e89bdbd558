package repository

import (
	"context"
	"time"

	"github.com/agencyops/renewd/internal/escalation/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *domain.EscalationRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO escalation_records (
			id, org_id, asset_id, escalated_to, reason, raised_at,
			last_notified_at, resolved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.OrgID,
		rec.AssetID,
		rec.EscalatedTo,
		rec.Reason,
		rec.RaisedAt,
		rec.LastNotifiedAt,
		rec.ResolvedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.EscalationRecord, error) {
	var rec domain.EscalationRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM escalation_records WHERE org_id = ? AND id = ?`,
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

func (r *repo) FindOpenByAsset(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID) (*domain.EscalationRecord, error) {
	var rec domain.EscalationRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM escalation_records
		 WHERE org_id = ? AND asset_id = ? AND resolved_at IS NULL
		 ORDER BY raised_at DESC LIMIT 1`,
		orgID,
		assetID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, includeResolved bool) ([]*domain.EscalationRecord, error) {
	var recs []*domain.EscalationRecord
	stmt := db.WithContext(ctx).
		Model(&domain.EscalationRecord{}).
		Where("org_id = ?", orgID)
	if !includeResolved {
		stmt = stmt.Where("resolved_at IS NULL")
	}
	err := stmt.
		Order("raised_at desc, id desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repo) MarkNotified(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE escalation_records SET last_notified_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND resolved_at IS NULL`,
		at,
		at,
		orgID,
		id,
	).Error
}

func (r *repo) ResolveOpenByAsset(ctx context.Context, db *gorm.DB, orgID, assetID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE escalation_records SET resolved_at = ?, updated_at = ?
		 WHERE org_id = ? AND asset_id = ? AND resolved_at IS NULL`,
		at,
		at,
		orgID,
		assetID,
	).Error
}

func (r *repo) ResolveByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE escalation_records SET resolved_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND resolved_at IS NULL`,
		at,
		at,
		orgID,
		id,
	).Error
}
