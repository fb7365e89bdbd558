// Package seed bootstraps a development database with a demo client and
// a handful of assets at staggered expiry dates, so the dashboard and
// scheduler have something to show on first run.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/internal/config"
)

const demoClientName = "Demo Agency Client"

// EnsureDemoData seeds one client with channel preferences and a few
// renewable assets. It is idempotent: seeding is skipped when the
// organization already has clients.
func EnsureDemoData(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.DefaultOrgID == 0 {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	orgID := snowflake.ID(cfg.DefaultOrgID)
	ctx := context.Background()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&clientdomain.Client{}).
			Where("org_id = ?", orgID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		client := &clientdomain.Client{
			ID:        node.Generate(),
			OrgID:     orgID,
			Name:      demoClientName,
			Email:     "billing@example.com",
			Phone:     "+15550100",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(client).Error; err != nil {
			return err
		}

		prefs := []clientdomain.ChannelPreference{
			{Channel: clientdomain.ChannelEmail, Priority: 0, DelayHours: 24},
			{Channel: clientdomain.ChannelInApp, Priority: 1, DelayHours: 24},
		}
		for i := range prefs {
			prefs[i].ID = node.Generate()
			prefs[i].OrgID = orgID
			prefs[i].ClientID = client.ID
			prefs[i].Enabled = true
			prefs[i].CreatedAt = now
			prefs[i].UpdatedAt = now
			if err := tx.Create(&prefs[i]).Error; err != nil {
				return err
			}
		}

		assets := []struct {
			kind    assetdomain.Kind
			name    string
			expires time.Time
		}{
			{assetdomain.KindDomain, "example.com", now.AddDate(0, 0, 21)},
			{assetdomain.KindHosting, "example.com hosting", now.AddDate(0, 2, 0)},
			{assetdomain.KindMaintenance, "example.com care plan", now.AddDate(0, 0, -2)},
		}
		for _, a := range assets {
			expiry := a.expires
			asset := &assetdomain.RenewableAsset{
				ID:        node.Generate(),
				OrgID:     orgID,
				Kind:      a.kind,
				Name:      a.name,
				ClientID:  client.ID,
				ExpiresAt: &expiry,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(asset).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
