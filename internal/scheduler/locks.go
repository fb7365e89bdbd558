package scheduler

import (
	"context"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	obsmetrics "github.com/agencyops/renewd/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
)

// fetchAssetsForWork claims the schedulable assets for one stage. On
// postgres the rows are claimed with SKIP LOCKED so concurrent
// instances never process the same asset twice in one tick.
func (s *Scheduler) fetchAssetsForWork(ctx context.Context, orgID snowflake.ID, limit int) ([]*assetdomain.RenewableAsset, error) {
	query := `SELECT * FROM renewable_assets
		 WHERE org_id = ? AND expires_at IS NOT NULL
		 ORDER BY expires_at ASC, id ASC
		 LIMIT ?`
	if s.db.Dialector.Name() == "postgres" {
		query = `SELECT * FROM renewable_assets
		 WHERE org_id = ? AND expires_at IS NOT NULL
		 ORDER BY expires_at ASC, id ASC
		 FOR UPDATE SKIP LOCKED
		 LIMIT ?`
	}

	schedMetrics := obsmetrics.Scheduler()
	lockStart := time.Now()
	var assets []*assetdomain.RenewableAsset
	err := s.db.WithContext(ctx).Raw(query, orgID, limit).Scan(&assets).Error
	schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceAssetsForWork, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return assets, nil
}
