package service

import (
	"context"
	"strings"

	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/config"
	"github.com/agencyops/renewd/internal/escalation/domain"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Policy *config.PolicyHolder
	Repo   domain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	cfg    config.Config
	policy *config.PolicyHolder
	repo   domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("escalation.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		cfg:    p.Cfg,
		policy: p.Policy,
		repo:   p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListEscalationRequest) (domain.ListEscalationResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListEscalationResponse{}, domain.ErrInvalidOrganization
	}

	items, err := s.repo.List(ctx, s.db, orgID, req.IncludeResolved)
	if err != nil {
		return domain.ListEscalationResponse{}, err
	}

	escalations := make([]domain.EscalationRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		escalations = append(escalations, *item)
	}

	return domain.ListEscalationResponse{Escalations: escalations}, nil
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveEscalationRequest) (domain.EscalationRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.EscalationRecord{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.EscalationRecord{}, domain.ErrInvalidID
	}

	rec, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.EscalationRecord{}, err
	}
	if rec == nil {
		return domain.EscalationRecord{}, domain.ErrNotFound
	}
	if !rec.Open() {
		return domain.EscalationRecord{}, domain.ErrAlreadyResolved
	}

	now := s.clock.Now()
	if err := s.repo.ResolveByID(ctx, s.db, orgID, id, now); err != nil {
		return domain.EscalationRecord{}, err
	}

	rec.ResolvedAt = &now
	rec.UpdatedAt = now
	s.log.Info("escalation resolved by operator",
		zap.String("escalation_id", rec.ID.String()),
		zap.String("asset_id", rec.AssetID.String()),
	)

	return *rec, nil
}

func (s *Service) Evaluate(ctx context.Context, req domain.EvaluateRequest) (domain.EvaluateResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.EvaluateResult{}, domain.ErrInvalidOrganization
	}
	if req.Asset == nil {
		return domain.EvaluateResult{Action: domain.ActionNone}, nil
	}

	open, err := s.repo.FindOpenByAsset(ctx, s.db, orgID, req.Asset.ID)
	if err != nil {
		return domain.EvaluateResult{}, err
	}

	policy := s.policy.Get()
	decision := domain.Decide(req.Asset, req.Status, req.Now, policy, open, req.CycleDispatches)

	switch decision.Action {
	case domain.ActionRaise:
		owner := snowflake.ID(s.cfg.DefaultOwnerID)
		if req.Asset.OwnerID != nil && *req.Asset.OwnerID != 0 {
			owner = *req.Asset.OwnerID
		}
		now := req.Now.UTC()
		rec := &domain.EscalationRecord{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			AssetID:        req.Asset.ID,
			EscalatedTo:    owner,
			Reason:         decision.Reason,
			RaisedAt:       now,
			LastNotifiedAt: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Insert(ctx, s.db, rec); err != nil {
			return domain.EvaluateResult{}, err
		}
		s.log.Info("escalation raised",
			zap.String("asset_id", req.Asset.ID.String()),
			zap.String("reason", string(decision.Reason)),
			zap.String("escalated_to", owner.String()),
		)
		return domain.EvaluateResult{Action: domain.ActionRaise, Record: rec}, nil

	case domain.ActionRenotify:
		now := req.Now.UTC()
		if err := s.repo.MarkNotified(ctx, s.db, orgID, open.ID, now); err != nil {
			return domain.EvaluateResult{}, err
		}
		open.LastNotifiedAt = now
		open.UpdatedAt = now
		return domain.EvaluateResult{Action: domain.ActionRenotify, Record: open}, nil

	case domain.ActionResolve:
		if err := s.repo.ResolveOpenByAsset(ctx, s.db, orgID, req.Asset.ID, req.Now.UTC()); err != nil {
			return domain.EvaluateResult{}, err
		}
		return domain.EvaluateResult{Action: domain.ActionResolve}, nil
	}

	return domain.EvaluateResult{Action: domain.ActionNone}, nil
}

func (s *Service) ResolveForAsset(ctx context.Context, assetID snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	return s.repo.ResolveOpenByAsset(ctx, s.db, orgID, assetID, s.clock.Now())
}
