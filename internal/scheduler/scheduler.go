// Package scheduler drives the recurring renewal tick: status refresh,
// due reminder dispatch, escalation evaluation and data-quality
// reconciliation. Ticks are single-flight; a new tick never overlaps a
// running one.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/internal/clock"
	appconfig "github.com/agencyops/renewd/internal/config"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	escalationdomain "github.com/agencyops/renewd/internal/escalation/domain"
	obsmetrics "github.com/agencyops/renewd/internal/observability/metrics"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/agencyops/renewd/internal/providers/email"
	"github.com/agencyops/renewd/internal/reminder"
	"github.com/agencyops/renewd/internal/router"
	"github.com/agencyops/renewd/internal/status"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler requires db, logger, services, id generator and clock")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	AppConfig     appconfig.Config
	Policy        *appconfig.PolicyHolder
	Assets        assetdomain.Repository
	ClientSvc     clientdomain.Service
	DispatchSvc   dispatchdomain.Service
	EscalationSvc escalationdomain.Service
	Locker        *Locker `optional:"true"`
	Config        Config  `optional:"true"`
}

type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	appCfg        appconfig.Config
	genID         *snowflake.Node
	clock         clock.Clock
	policy        *appconfig.PolicyHolder
	assets        assetdomain.Repository
	clientSvc     clientdomain.Service
	dispatchSvc   dispatchdomain.Service
	escalationSvc escalationdomain.Service
	locker        *Locker

	trigger chan struct{}

	// lastStatus remembers the previous resolution per asset so the
	// tick can emit status transition metrics.
	lastStatus map[snowflake.ID]status.RenewalStatus
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Policy == nil ||
		p.Assets == nil || p.ClientSvc == nil || p.DispatchSvc == nil || p.EscalationSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		appCfg:        p.AppConfig,
		genID:         p.GenID,
		clock:         p.Clock,
		policy:        p.Policy,
		assets:        p.Assets,
		clientSvc:     p.ClientSvc,
		dispatchSvc:   p.DispatchSvc,
		escalationSvc: p.EscalationSvc,
		locker:        p.Locker,
		trigger:       make(chan struct{}, 1),
		lastStatus:    make(map[snowflake.ID]status.RenewalStatus),
	}, nil
}

// TriggerNow requests an out-of-band tick. Non-blocking; a pending
// trigger coalesces with any already queued.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the next tick picks the work up.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx := parent
	if s.appCfg.DefaultOrgID != 0 {
		ctx = orgcontext.WithOrgID(ctx, s.appCfg.DefaultOrgID)
	}

	var err error
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"status_refresh", s.StatusRefreshJob},
		{"reminders", s.RemindersJob},
		{"escalations", s.EscalationsJob},
		{"reconcile", s.ReconcileJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(ctx, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		s.runLocked(ctx)
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
		}
	}
}

// runLocked guards RunOnce with the distributed tick lock when one is
// configured. A lock held elsewhere means another instance is mid-tick.
func (s *Scheduler) runLocked(ctx context.Context) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, tickLockKey, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("tick lock unavailable", zap.Error(err))
			return
		}
		if !ok {
			obsmetrics.Scheduler().IncTickSkipped()
			s.log.Debug("tick skipped, lock held by another instance")
			return
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), tickLockKey, token); err != nil {
				s.log.Warn("tick lock release failed", zap.Error(err))
			}
		}()
	}

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// StatusRefreshJob re-resolves every schedulable asset and emits one
// transition metric per status change since the previous tick.
func (s *Scheduler) StatusRefreshJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "status_refresh", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return assetdomain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	policy := s.policy.Get()
	schedMetrics := obsmetrics.Scheduler()

	assets, err := s.fetchAssetsForWork(ctx, orgID, s.cfg.BatchSize)
	if err != nil {
		schedMetrics.IncStageError(obsmetrics.TickStageStatusRefresh, err)
		s.logSchedulerError(ctx, run, "scheduler.status.fetch.failed", "status_refresh", 0, err)
		return err
	}

	for _, asset := range assets {
		res := status.Resolve(asset, now, policy)
		if prev, seen := s.lastStatus[asset.ID]; seen && prev != res.Status {
			schedMetrics.IncStatusTransition(string(prev), string(res.Status))
		}
		s.lastStatus[asset.ID] = res.Status
	}
	run.AddProcessed(len(assets))
	schedMetrics.AddBatchProcessed("status_refresh", obsmetrics.LockResourceAssetsForWork, len(assets))

	return nil
}

// RemindersJob assembles the due reminder tiers plus the sent-but-
// unacknowledged tiers eligible for fallback advancement, then drives
// them through the dispatch worker pool.
func (s *Scheduler) RemindersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "reminders", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	outcome, err := s.DispatchDueNow(ctx)
	if err != nil {
		obsmetrics.Scheduler().IncStageError(obsmetrics.TickStageReminders, err)
		s.logSchedulerError(ctx, run, "scheduler.reminders.failed", "reminders", 0, err)
	}
	run.AddProcessed(outcome.Sent + outcome.Suppressed + outcome.Failed)
	return err
}

// DispatchDueNow runs one reminder dispatch pass immediately. It backs
// both the recurring tick and the dashboard's "send notifications now"
// action.
func (s *Scheduler) DispatchDueNow(ctx context.Context) (dispatchdomain.BatchOutcome, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return dispatchdomain.BatchOutcome{}, dispatchdomain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	policy := s.policy.Get()

	assets, err := s.fetchAssetsForWork(ctx, orgID, s.cfg.BatchSize)
	if err != nil {
		return dispatchdomain.BatchOutcome{}, err
	}
	if len(assets) == 0 {
		return dispatchdomain.BatchOutcome{}, nil
	}

	ids := make([]snowflake.ID, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.ID)
	}
	sentIndex, err := s.dispatchSvc.SentIndex(ctx, ids)
	if err != nil {
		return dispatchdomain.BatchOutcome{}, err
	}

	var (
		reqs      []dispatchdomain.SendRequest
		prefCache = make(map[snowflake.ID]*clientdomain.ResolvedPreferences)
		jobErr    error
	)
	for _, asset := range assets {
		if ctx.Err() != nil {
			return dispatchdomain.BatchOutcome{}, ctx.Err()
		}

		tiers := reminder.DueTiers(asset, now, policy, sentIndex)
		followUps, err := s.followUpTiers(ctx, asset, now)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		tiers = append(tiers, followUps...)
		if len(tiers) == 0 {
			continue
		}

		prefs, err := s.preferencesFor(ctx, asset, prefCache)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		steps := router.Route(*prefs, false, "")

		res := status.Resolve(asset, now, policy)
		for _, tier := range tiers {
			reqs = append(reqs, dispatchdomain.SendRequest{
				Asset:      asset,
				Tier:       tier,
				Steps:      steps,
				TemplateID: templateForTier(tier),
				Variables:  notificationVariables(asset, res),
			})
		}
	}

	outcome, err := s.dispatchSvc.DispatchBatch(ctx, reqs)
	return outcome, errors.Join(jobErr, err)
}

// followUpTiers returns tiers already sent this cycle that still lack
// an acknowledgment. The dispatch chain walk decides whether their
// fallback window has elapsed.
func (s *Scheduler) followUpTiers(ctx context.Context, asset *assetdomain.RenewableAsset, now time.Time) ([]reminder.Tier, error) {
	records, err := s.dispatchSvc.ListForAssetSince(ctx, asset.ID, asset.CycleStart())
	if err != nil {
		return nil, err
	}

	acked := make(map[string]bool)
	unacked := make(map[string]*dispatchdomain.DispatchRecord)
	for _, rec := range records {
		if rec == nil || rec.Outcome != dispatchdomain.OutcomeSent {
			continue
		}
		if rec.Acknowledged() {
			acked[rec.TierKey] = true
			continue
		}
		if existing, ok := unacked[rec.TierKey]; !ok || rec.SentAt.After(existing.SentAt) {
			unacked[rec.TierKey] = rec
		}
	}

	var tiers []reminder.Tier
	for key, rec := range unacked {
		if acked[key] {
			continue
		}
		tiers = append(tiers, reminder.Tier{
			AssetID:    int64(asset.ID),
			Key:        key,
			PostExpiry: strings.Contains(key, ":post"),
			FireAt:     rec.SentAt,
		})
	}
	return tiers, nil
}

// EscalationsJob applies the escalation state machine per asset and
// dispatches the resulting internal notifications.
func (s *Scheduler) EscalationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "escalations", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return escalationdomain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	policy := s.policy.Get()
	schedMetrics := obsmetrics.Scheduler()

	assets, err := s.fetchAssetsForWork(ctx, orgID, s.cfg.BatchSize)
	if err != nil {
		schedMetrics.IncStageError(obsmetrics.TickStageEscalations, err)
		s.logSchedulerError(ctx, run, "scheduler.escalations.fetch.failed", "escalations", 0, err)
		return err
	}

	var (
		reqs      []dispatchdomain.SendRequest
		prefCache = make(map[snowflake.ID]*clientdomain.ResolvedPreferences)
		jobErr    error
	)
	for _, asset := range assets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res := status.Resolve(asset, now, policy)
		cycleRecords, err := s.dispatchSvc.ListForAssetSince(ctx, asset.ID, asset.CycleStart())
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			schedMetrics.IncStageError(obsmetrics.TickStageEscalations, err)
			s.logSchedulerError(ctx, run, "scheduler.escalations.dispatch_lookup.failed", "escalations", asset.ID, err)
			continue
		}

		result, err := s.escalationSvc.Evaluate(ctx, escalationdomain.EvaluateRequest{
			Asset:           asset,
			Status:          res.Status,
			Now:             now,
			CycleDispatches: cycleRecords,
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			schedMetrics.IncStageError(obsmetrics.TickStageEscalations, err)
			s.logSchedulerError(ctx, run, "scheduler.escalations.evaluate.failed", "escalations", asset.ID, err)
			continue
		}
		if result.Record == nil {
			continue
		}
		run.AddProcessed(1)

		prefs, err := s.preferencesFor(ctx, asset, prefCache)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		steps := router.Route(*prefs, true, result.Record.EscalatedTo.String())

		reqs = append(reqs, dispatchdomain.SendRequest{
			Asset: asset,
			Tier: reminder.Tier{
				AssetID: int64(asset.ID),
				Key:     escalationTierKey(asset.ID, result.Record),
				FireAt:  now,
			},
			Steps:      steps,
			TemplateID: email.TemplateEscalation,
			Variables:  notificationVariables(asset, res),
		})
	}

	if len(reqs) > 0 {
		outcome, err := s.dispatchSvc.DispatchBatch(ctx, reqs)
		jobErr = errors.Join(jobErr, err)
		schedMetrics.AddBatchProcessed("escalations", obsmetrics.LockResourceEscalationsForWork,
			outcome.Sent+outcome.Suppressed+outcome.Failed)
	}

	return jobErr
}

// ReconcileJob surfaces the assets excluded from scheduling because of
// missing expiry dates. A non-empty list is an operator signal, not an
// error.
func (s *Scheduler) ReconcileJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "reconcile", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return assetdomain.ErrInvalidOrganization
	}

	invalid, err := s.assets.ListInvalidExpiry(ctx, s.db, orgID)
	if err != nil {
		obsmetrics.Scheduler().IncStageError(obsmetrics.TickStageReconcile, err)
		s.logSchedulerError(ctx, run, "scheduler.reconcile.failed", "reconcile", 0, err)
		return err
	}
	if len(invalid) > 0 {
		s.logger(ctx).Warn("assets excluded from scheduling",
			zap.Int("count", len(invalid)),
			zap.String("reason", "missing_expiry"),
		)
	}
	run.AddProcessed(len(invalid))
	return nil
}

func (s *Scheduler) preferencesFor(ctx context.Context, asset *assetdomain.RenewableAsset, cache map[snowflake.ID]*clientdomain.ResolvedPreferences) (*clientdomain.ResolvedPreferences, error) {
	if prefs, ok := cache[asset.ClientID]; ok {
		return prefs, nil
	}
	prefs, err := s.clientSvc.GetPreferences(ctx, clientdomain.GetPreferencesRequest{
		ClientID: asset.ClientID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("preferences for client %s: %w", asset.ClientID, err)
	}
	cache[asset.ClientID] = &prefs
	return &prefs, nil
}

func escalationTierKey(assetID snowflake.ID, rec *escalationdomain.EscalationRecord) string {
	return fmt.Sprintf("%d:esc:%d", assetID, rec.LastNotifiedAt.Unix())
}

func templateForTier(tier reminder.Tier) string {
	if tier.PostExpiry {
		return email.TemplateOverdueReminder
	}
	return email.TemplateRenewalReminder
}

func notificationVariables(asset *assetdomain.RenewableAsset, res status.Resolution) map[string]string {
	vars := map[string]string{
		"asset_name":     asset.Name,
		"asset_kind":     strings.ToLower(string(asset.Kind)),
		"days_remaining": strconv.Itoa(res.DaysRemaining),
	}
	if asset.ExpiresAt != nil {
		vars["expires_at"] = asset.ExpiresAt.UTC().Format("2006-01-02")
	}
	return vars
}
