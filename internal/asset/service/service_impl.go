package service

import (
	"context"
	"strings"
	"time"

	"github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("asset.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAssetRequest) (domain.RenewableAsset, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RenewableAsset{}, domain.ErrInvalidOrganization
	}

	if !domain.ValidKind(req.Kind) {
		return domain.RenewableAsset{}, domain.ErrInvalidKind
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RenewableAsset{}, domain.ErrInvalidName
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return domain.RenewableAsset{}, domain.ErrInvalidClient
	}

	var ownerID *snowflake.ID
	if strings.TrimSpace(req.OwnerID) != "" {
		parsed, err := snowflake.ParseString(strings.TrimSpace(req.OwnerID))
		if err != nil || parsed == 0 {
			return domain.RenewableAsset{}, domain.ErrInvalidID
		}
		ownerID = &parsed
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && !req.ExpiresAt.IsZero() {
		utc := req.ExpiresAt.UTC()
		expiresAt = &utc
	}

	now := s.clock.Now()
	asset := domain.RenewableAsset{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Kind:      req.Kind,
		Name:      name,
		ClientID:  clientID,
		OwnerID:   ownerID,
		ExpiresAt: expiresAt,
		AutoRenew: req.AutoRenew,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &asset); err != nil {
		return domain.RenewableAsset{}, err
	}

	if expiresAt == nil {
		s.log.Warn("asset created without expiry, excluded from scheduling",
			zap.String("asset_id", asset.ID.String()),
		)
	}

	return asset, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAssetRequest) (domain.ListAssetResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListAssetResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListAssetFilter{}
	if req.Kind != "" {
		if !domain.ValidKind(req.Kind) {
			return domain.ListAssetResponse{}, domain.ErrInvalidKind
		}
		filter.Kind = req.Kind
	}
	if strings.TrimSpace(req.ClientID) != "" {
		clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
		if err != nil || clientID == 0 {
			return domain.ListAssetResponse{}, domain.ErrInvalidClient
		}
		filter.ClientID = int64(clientID)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListAssetResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(asset *domain.RenewableAsset) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        asset.ID.String(),
			CreatedAt: asset.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	assets := make([]domain.RenewableAsset, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		assets = append(assets, *item)
	}

	resp := domain.ListAssetResponse{Assets: assets}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetAssetRequest) (domain.RenewableAsset, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RenewableAsset{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.RenewableAsset{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.RenewableAsset{}, err
	}
	if item == nil {
		return domain.RenewableAsset{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) DataQuality(ctx context.Context) (domain.DataQualityResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.DataQualityResponse{}, domain.ErrInvalidOrganization
	}

	items, err := s.repo.ListInvalidExpiry(ctx, s.db, orgID)
	if err != nil {
		return domain.DataQualityResponse{}, err
	}

	entries := make([]domain.DataQualityEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, domain.DataQualityEntry{
			Asset:  *item,
			Reason: "missing_expiry",
		})
	}

	return domain.DataQualityResponse{Excluded: entries}, nil
}
