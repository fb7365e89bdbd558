package service

import (
	"context"
	"strings"
	"time"

	"github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultDelayHours = 24

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
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Client{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Client{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	client := domain.Client{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		return domain.Client{}, err
	}

	return client, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClientRequest) (domain.ListClientResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListClientResponse{}, domain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, domain.ListClientFilter{
		Name: strings.TrimSpace(req.Name),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListClientResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(client *domain.Client) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        client.ID.String(),
			CreatedAt: client.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, *item)
	}

	resp := domain.ListClientResponse{Clients: clients}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetClientRequest) (domain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Client{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Client{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Client{}, err
	}
	if item == nil {
		return domain.Client{}, domain.ErrNotFound
	}

	return *item, nil
}

// GetPreferences resolves the client's ordered channel chain. A client with
// no stored preferences falls back to [Email]; an opted-out client resolves
// to an empty chain so dispatches get recorded as suppressed.
func (s *Service) GetPreferences(ctx context.Context, req domain.GetPreferencesRequest) (domain.ResolvedPreferences, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ResolvedPreferences{}, domain.ErrInvalidOrganization
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return domain.ResolvedPreferences{}, domain.ErrInvalidID
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.ResolvedPreferences{}, err
	}
	if client == nil {
		return domain.ResolvedPreferences{}, domain.ErrNotFound
	}

	resolved := domain.ResolvedPreferences{ClientID: client.ID.String()}
	if client.NotifyOptOut {
		resolved.OptOut = true
		return resolved, nil
	}

	prefs, err := s.repo.ListPreferences(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.ResolvedPreferences{}, err
	}

	if len(prefs) == 0 {
		s.log.Warn("no channel preferences configured, defaulting to email",
			zap.String("client_id", client.ID.String()),
		)
		resolved.Defaulted = true
		if recipient := recipientFor(domain.ChannelEmail, client); recipient != "" {
			resolved.Steps = []domain.PreferenceStep{{
				Channel:    domain.ChannelEmail,
				Recipient:  recipient,
				DelayHours: defaultDelayHours,
			}}
		}
		return resolved, nil
	}

	for _, pref := range prefs {
		if pref == nil || !pref.Enabled {
			continue
		}
		recipient := recipientFor(pref.Channel, client)
		if recipient == "" {
			continue
		}
		delay := pref.DelayHours
		if delay <= 0 {
			delay = defaultDelayHours
		}
		resolved.Steps = append(resolved.Steps, domain.PreferenceStep{
			Channel:    pref.Channel,
			Recipient:  recipient,
			DelayHours: delay,
		})
	}

	return resolved, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, req domain.UpdatePreferencesRequest) (domain.ResolvedPreferences, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ResolvedPreferences{}, domain.ErrInvalidOrganization
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return domain.ResolvedPreferences{}, domain.ErrInvalidID
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.ResolvedPreferences{}, err
	}
	if client == nil {
		return domain.ResolvedPreferences{}, domain.ErrNotFound
	}

	now := s.clock.Now()
	prefs := make([]*domain.ChannelPreference, 0, len(req.Steps))
	for i, step := range req.Steps {
		if !domain.ValidChannel(step.Channel) {
			return domain.ResolvedPreferences{}, domain.ErrInvalidChannel
		}
		delay := step.DelayHours
		if delay <= 0 {
			delay = defaultDelayHours
		}
		prefs = append(prefs, &domain.ChannelPreference{
			ID:         s.genID.Generate(),
			OrgID:      orgID,
			ClientID:   clientID,
			Channel:    step.Channel,
			Priority:   i,
			DelayHours: delay,
			Enabled:    step.Enabled,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := s.repo.ReplacePreferences(ctx, s.db, orgID, clientID, prefs); err != nil {
		return domain.ResolvedPreferences{}, err
	}

	if req.OptOut != nil && *req.OptOut != client.NotifyOptOut {
		if err := s.repo.SetOptOut(ctx, s.db, orgID, clientID, *req.OptOut); err != nil {
			return domain.ResolvedPreferences{}, err
		}
	}

	return s.GetPreferences(ctx, domain.GetPreferencesRequest{ClientID: req.ClientID})
}

func recipientFor(channel domain.Channel, client *domain.Client) string {
	switch channel {
	case domain.ChannelEmail:
		return client.Email
	case domain.ChannelSMS, domain.ChannelWhatsApp:
		return client.Phone
	case domain.ChannelInApp:
		return client.ID.String()
	}
	return ""
}
