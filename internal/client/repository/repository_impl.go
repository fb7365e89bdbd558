package repository

import (
	"context"
	"strings"

	"github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (
			id, org_id, name, email, phone, notify_opt_out, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrgID,
		client.Name,
		client.Email,
		client.Phone,
		client.NotifyOptOut,
		client.Metadata,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM clients WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("org_id = ?", orgID)
	if name := strings.TrimSpace(filter.Name); name != "" {
		stmt = stmt.Where("name = ?", name)
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
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) SetOptOut(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, optOut bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clients SET notify_opt_out = ?, updated_at = CURRENT_TIMESTAMP WHERE org_id = ? AND id = ?`,
		optOut,
		orgID,
		id,
	).Error
}

func (r *repo) ListPreferences(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]*domain.ChannelPreference, error) {
	var prefs []*domain.ChannelPreference
	err := db.WithContext(ctx).
		Model(&domain.ChannelPreference{}).
		Where("org_id = ? AND client_id = ?", orgID, clientID).
		Order("priority asc, id asc").
		Find(&prefs).Error
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (r *repo) ReplacePreferences(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID, prefs []*domain.ChannelPreference) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`DELETE FROM channel_preferences WHERE org_id = ? AND client_id = ?`,
			orgID,
			clientID,
		).Error; err != nil {
			return err
		}
		for _, pref := range prefs {
			if pref == nil {
				continue
			}
			if err := tx.Exec(
				`INSERT INTO channel_preferences (
					id, org_id, client_id, channel, priority, delay_hours, enabled, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				pref.ID,
				pref.OrgID,
				pref.ClientID,
				pref.Channel,
				pref.Priority,
				pref.DelayHours,
				pref.Enabled,
				pref.CreatedAt,
				pref.UpdatedAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
