package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/cloudmetrics"
	"github.com/agencyops/renewd/internal/config"
	"github.com/agencyops/renewd/internal/dispatch/domain"
	obsmetrics "github.com/agencyops/renewd/internal/observability/metrics"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/agencyops/renewd/internal/reminder"
	"github.com/agencyops/renewd/internal/router"
	"github.com/agencyops/renewd/pkg/db"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const backoffBase = 500 * time.Millisecond

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
	Repo    domain.Repository
	Senders domain.SenderRegistry
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	metrics *obsmetrics.Metrics
	repo    domain.Repository
	senders domain.SenderRegistry
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("dispatch.coordinator"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Cfg,
		metrics: p.Metrics,
		repo:    p.Repo,
		senders: p.Senders,
	}
}

// Dispatch walks the routed chain for one tier. Each channel is rechecked
// against the dispatch ledger immediately before any send attempt, so the
// operation is safe to re-invoke after a crash or a duplicate tick.
func (s *Service) Dispatch(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}
	if req.Asset == nil {
		return "", domain.ErrInvalidID
	}

	if len(req.Steps) == 0 {
		return s.recordSuppressed(ctx, orgID, req)
	}

	now := s.clock.Now()
	attemptedAny := false

	for _, step := range req.Steps {
		existing, err := s.repo.FindSent(ctx, s.db, orgID, req.Asset.ID, req.Tier.Key, step.Channel)
		if err != nil {
			return "", err
		}
		if existing != nil {
			if existing.Acknowledged() {
				return domain.ResultAlreadySent, nil
			}
			delay := time.Duration(step.DelayHours) * time.Hour
			if delay <= 0 || now.Before(existing.SentAt.Add(delay)) {
				// The acknowledgment window is still open.
				return domain.ResultWaiting, nil
			}
			// Window elapsed with no acknowledgment; advance to the
			// next candidate in the fallback chain.
			continue
		}

		sent, err := s.attemptChannel(ctx, orgID, req, step)
		if err != nil {
			return "", err
		}
		attemptedAny = true
		if sent {
			return domain.ResultSent, nil
		}
	}

	if attemptedAny {
		// All candidates exhausted; the last record carries the failed
		// outcome and the tier is surfaced for manual intervention.
		return domain.ResultFailed, nil
	}
	return domain.ResultWaiting, nil
}

// attemptChannel tries a single channel with retries and backoff. The
// outcome record is written atomically after the determination, win or
// lose, so no tier is ever dispatched without a ledger fact.
func (s *Service) attemptChannel(ctx context.Context, orgID snowflake.ID, req domain.SendRequest, step router.Step) (bool, error) {
	sender, ok := s.senders[step.Channel]
	if !ok || sender == nil {
		s.log.Warn("no transport for channel",
			zap.String("channel", string(step.Channel)),
			zap.String("tier_key", req.Tier.Key),
		)
		if err := s.insertOutcome(ctx, orgID, req, step, domain.OutcomeFailed, "", 0); err != nil {
			return false, err
		}
		obsmetrics.Scheduler().IncDispatchOutcome(string(step.Channel), obsmetrics.DispatchOutcomeFailed)
		return false, nil
	}

	maxAttempts := s.cfg.DispatchMaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	timedOut := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return false, err
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		providerRef, err := sender.Send(sendCtx, step.Recipient, req.TemplateID, req.Variables)
		cancel()

		if err == nil {
			if insErr := s.insertOutcome(ctx, orgID, req, step, domain.OutcomeSent, providerRef, attempt+1); insErr != nil {
				if db.IsDuplicateKeyErr(insErr) {
					// Another worker recorded the success first.
					return true, nil
				}
				return false, insErr
			}
			obsmetrics.Scheduler().IncDispatchOutcome(string(step.Channel), obsmetrics.DispatchOutcomeSent)
			s.metrics.RecordReminderDispatched(ctx, string(step.Channel), string(domain.OutcomeSent))
			cloudmetrics.RecordReminderDispatched(orgID.String(), string(step.Channel))
			return true, nil
		}

		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}

	outcome := domain.OutcomeFailed
	metricOutcome := obsmetrics.DispatchOutcomeFailed
	if timedOut {
		outcome = domain.OutcomeTimedOut
	}
	s.log.Warn("channel exhausted after retries",
		zap.String("channel", string(step.Channel)),
		zap.String("tier_key", req.Tier.Key),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	if err := s.insertOutcome(ctx, orgID, req, step, outcome, "", maxAttempts); err != nil {
		return false, err
	}
	obsmetrics.Scheduler().IncDispatchOutcome(string(step.Channel), metricOutcome)
	return false, nil
}

func (s *Service) insertOutcome(ctx context.Context, orgID snowflake.ID, req domain.SendRequest, step router.Step, outcome domain.Outcome, providerRef string, attempts int) error {
	now := s.clock.Now()
	return s.repo.Insert(ctx, s.db, &domain.DispatchRecord{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		AssetID:     req.Asset.ID,
		TierKey:     req.Tier.Key,
		Channel:     step.Channel,
		Recipient:   step.Recipient,
		Outcome:     outcome,
		ProviderRef: providerRef,
		Attempts:    attempts,
		SentAt:      now,
		CreatedAt:   now,
	})
}

func (s *Service) recordSuppressed(ctx context.Context, orgID snowflake.ID, req domain.SendRequest) (domain.SendResult, error) {
	existing, err := s.repo.FindByTierOutcome(ctx, s.db, orgID, req.Tier.Key, domain.OutcomeSuppressed)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return domain.ResultWaiting, nil
	}

	now := s.clock.Now()
	err = s.repo.Insert(ctx, s.db, &domain.DispatchRecord{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		AssetID:   req.Asset.ID,
		TierKey:   req.Tier.Key,
		Channel:   domain.ChannelNone,
		Outcome:   domain.OutcomeSuppressed,
		SentAt:    now,
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	obsmetrics.Scheduler().IncDispatchOutcome(string(domain.ChannelNone), obsmetrics.DispatchOutcomeSuppressed)
	s.metrics.RecordReminderSuppressed(ctx, "no_enabled_channel")
	s.log.Info("dispatch suppressed by client preference",
		zap.String("asset_id", req.Asset.ID.String()),
		zap.String("tier_key", req.Tier.Key),
	)
	return domain.ResultSuppressed, nil
}

// DispatchBatch drives dispatches through a bounded worker pool. A failed
// or stuck dispatch never blocks the others; cancellation stops new work
// while letting in-flight sends finish.
func (s *Service) DispatchBatch(ctx context.Context, reqs []domain.SendRequest) (domain.BatchOutcome, error) {
	workers := s.cfg.DispatchWorkers
	if workers <= 0 {
		workers = 10
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}
	if workers == 0 {
		return domain.BatchOutcome{}, nil
	}

	jobs := make(chan domain.SendRequest)
	var (
		mu      sync.Mutex
		outcome domain.BatchOutcome
		errs    []error
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				result, err := s.Dispatch(ctx, req)
				mu.Lock()
				switch {
				case err != nil:
					errs = append(errs, err)
					outcome.Failed++
				case result == domain.ResultSent:
					outcome.Sent++
				case result == domain.ResultSuppressed:
					outcome.Suppressed++
				case result == domain.ResultFailed:
					outcome.Failed++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, req := range reqs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- req:
		}
	}
	close(jobs)
	wg.Wait()

	return outcome, errors.Join(errs...)
}

func (s *Service) List(ctx context.Context, req domain.ListDispatchRequest) (domain.ListDispatchResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListDispatchResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListDispatchFilter{Outcome: req.Outcome}
	if strings.TrimSpace(req.AssetID) != "" {
		assetID, err := snowflake.ParseString(strings.TrimSpace(req.AssetID))
		if err != nil || assetID == 0 {
			return domain.ListDispatchResponse{}, domain.ErrInvalidID
		}
		filter.AssetID = int64(assetID)
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
		return domain.ListDispatchResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(rec *domain.DispatchRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        rec.ID.String(),
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	dispatches := make([]domain.DispatchRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		dispatches = append(dispatches, *item)
	}

	resp := domain.ListDispatchResponse{Dispatches: dispatches}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Acknowledge(ctx context.Context, req domain.AcknowledgeRequest) (domain.DispatchRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.DispatchRecord{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.DispatchRecord{}, domain.ErrInvalidID
	}

	rec, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	if rec == nil {
		return domain.DispatchRecord{}, domain.ErrNotFound
	}

	if !rec.Acknowledged() {
		now := s.clock.Now()
		if err := s.repo.Acknowledge(ctx, s.db, orgID, id, now); err != nil {
			return domain.DispatchRecord{}, err
		}
		rec.AcknowledgedAt = &now
	}

	return *rec, nil
}

func (s *Service) SentIndex(ctx context.Context, assetIDs []snowflake.ID) (reminder.SentIndex, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	keys, err := s.repo.SentTierKeys(ctx, s.db, orgID, assetIDs)
	if err != nil {
		return nil, err
	}

	index := make(reminder.SentIndex, len(keys))
	for _, key := range keys {
		index[key] = true
	}
	return index, nil
}

func (s *Service) ListForAssetSince(ctx context.Context, assetID snowflake.ID, since time.Time) ([]*domain.DispatchRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListByAssetSince(ctx, s.db, orgID, assetID, since)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := backoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
