package service

import (
	"context"
	"strings"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/cloudmetrics"
	escalationdomain "github.com/agencyops/renewd/internal/escalation/domain"
	obsmetrics "github.com/agencyops/renewd/internal/observability/metrics"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/agencyops/renewd/internal/renewal/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Metrics     *obsmetrics.Metrics `optional:"true"`
	Assets      assetdomain.Repository
	Escalations escalationdomain.Service
	Trigger     domain.TickTrigger `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	metrics     *obsmetrics.Metrics
	assets      assetdomain.Repository
	escalations escalationdomain.Service
	trigger     domain.TickTrigger
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("renewal.coordinator"),
		clock:       p.Clock,
		metrics:     p.Metrics,
		assets:      p.Assets,
		escalations: p.Escalations,
		trigger:     p.Trigger,
	}
}

// RenewBatch applies each renewal independently. Writes go through an
// optimistic updated_at check, so two concurrent renewals of the same
// asset produce exactly one RENEWED result; the loser is rejected with
// a concurrency_conflict reason and can retry with fresh data.
func (s *Service) RenewBatch(ctx context.Context, req domain.RenewBatchRequest) (domain.RenewBatchResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RenewBatchResponse{}, domain.ErrInvalidOrganization
	}
	if len(req.Items) == 0 {
		return domain.RenewBatchResponse{}, domain.ErrEmptyBatch
	}

	resp := domain.RenewBatchResponse{
		Results: make([]domain.ItemResult, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		result := s.renewOne(ctx, orgID, item)
		if result.Result == domain.ResultRenewed {
			resp.Renewed++
		} else {
			resp.Rejected++
		}
		resp.Results = append(resp.Results, result)
	}

	s.log.Info("renewal batch applied",
		zap.Int("items", len(req.Items)),
		zap.Int("renewed", resp.Renewed),
		zap.Int("rejected", resp.Rejected),
	)

	if resp.Renewed > 0 && s.trigger != nil {
		// Clear stale reminders now rather than on the next interval.
		s.trigger.TriggerNow()
	}

	return resp, nil
}

func (s *Service) renewOne(ctx context.Context, orgID snowflake.ID, item domain.RenewalItem) domain.ItemResult {
	rejected := func(reason string) domain.ItemResult {
		s.metrics.RecordRenewalRejected(ctx, reason)
		return domain.ItemResult{AssetID: item.AssetID, Result: domain.ResultRejected, Reason: reason}
	}

	id, err := snowflake.ParseString(strings.TrimSpace(item.AssetID))
	if err != nil || id == 0 {
		return rejected(domain.ReasonInvalidID)
	}
	if item.ExpiresAt.IsZero() {
		return rejected(domain.ReasonInvalidExpiry)
	}

	asset, err := s.assets.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		s.log.Error("renewal lookup failed",
			zap.String("asset_id", item.AssetID),
			zap.Error(err),
		)
		return rejected(domain.ReasonInternal)
	}
	if asset == nil {
		return rejected(domain.ReasonNotFound)
	}

	newExpiry := item.ExpiresAt.UTC()
	if asset.ExpiresAt != nil && !newExpiry.After(asset.ExpiresAt.UTC()) && !item.AllowBackdate {
		return rejected(domain.ReasonExpiryNotAfter)
	}

	now := s.clock.Now()
	expected := asset.UpdatedAt
	asset.ExpiresAt = &newExpiry
	asset.LastRenewalAt = &now
	asset.UpdatedAt = now

	applied, err := s.assets.ApplyRenewal(ctx, s.db, asset, expected)
	if err != nil {
		s.log.Error("renewal write failed",
			zap.String("asset_id", item.AssetID),
			zap.Error(err),
		)
		return rejected(domain.ReasonInternal)
	}
	if !applied {
		return rejected(domain.ReasonConcurrencyConflict)
	}

	// The asset left its overdue state; close any open escalation.
	if err := s.escalations.ResolveForAsset(ctx, id); err != nil {
		s.log.Warn("escalation close after renewal failed",
			zap.String("asset_id", item.AssetID),
			zap.Error(err),
		)
	}

	s.metrics.RecordRenewalApplied(ctx, string(asset.Kind))
	cloudmetrics.RecordRenewalApplied(orgID.String(), string(asset.Kind))
	return domain.ItemResult{AssetID: item.AssetID, Result: domain.ResultRenewed}
}
