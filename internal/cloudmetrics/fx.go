package cloudmetrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
)

const pushInterval = 30 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, pusher Pusher) *CloudMetrics {
		if !cfg.Cloud.Metrics.Enabled || pusher == nil {
			return nil
		}
		c := New(prometheus.NewRegistry(), pusher, cfg.InstanceID, cfg.AppVersion)
		setRecorder(c)
		return c
	}),
	fx.Invoke(func(lc fx.Lifecycle, c *CloudMetrics, logger *zap.Logger, db *gorm.DB) {
		if c == nil {
			return
		}

		if logger == nil {
			logger = zap.NewNop()
		}

		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				logger.Info("starting fleet metrics background worker")
				go func() {
					ticker := time.NewTicker(pushInterval)
					defer ticker.Stop()

					collectAndPush(ctx, c, db, logger)
					for {
						select {
						case <-ticker.C:
							collectAndPush(ctx, c, db, logger)
						case <-ctx.Done():
							logger.Info("stopping fleet metrics background worker")
							return
						}
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}),
)

func collectAndPush(ctx context.Context, c *CloudMetrics, db *gorm.DB, logger *zap.Logger) {
	updateSystemMetrics(c)
	updateInventoryCounts(ctx, c, db)
	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := c.pusher.Push(pushCtx, c.registry); err != nil {
		logger.Error("fleet metrics push failed", zap.Error(err))
	}
}

func updateSystemMetrics(c *CloudMetrics) {
	if c == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.SetMemoryUsage(m.Sys)
}

func updateInventoryCounts(ctx context.Context, c *CloudMetrics, db *gorm.DB) {
	if c == nil || db == nil {
		return
	}

	for _, kind := range []assetdomain.Kind{assetdomain.KindDomain, assetdomain.KindHosting, assetdomain.KindMaintenance} {
		var count int64
		if err := db.WithContext(ctx).
			Table("renewable_assets").
			Where("kind = ?", kind).
			Count(&count).Error; err != nil {
			continue
		}
		c.SetAssetsTracked(string(kind), count)
	}

	var clients int64
	if err := db.WithContext(ctx).Table("clients").Count(&clients).Error; err == nil {
		c.SetClientsTotal(clients)
	}

	var open int64
	if err := db.WithContext(ctx).
		Table("escalation_records").
		Where("resolved_at IS NULL").
		Count(&open).Error; err == nil {
		c.SetOpenEscalations(open)
	}
}
