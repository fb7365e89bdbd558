package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	assetrepository "github.com/agencyops/renewd/internal/asset/repository"
	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	clientrepository "github.com/agencyops/renewd/internal/client/repository"
	clientservice "github.com/agencyops/renewd/internal/client/service"
	"github.com/agencyops/renewd/internal/clock"
	appconfig "github.com/agencyops/renewd/internal/config"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	dispatchrepository "github.com/agencyops/renewd/internal/dispatch/repository"
	dispatchservice "github.com/agencyops/renewd/internal/dispatch/service"
	escalationdomain "github.com/agencyops/renewd/internal/escalation/domain"
	escalationrepository "github.com/agencyops/renewd/internal/escalation/repository"
	escalationservice "github.com/agencyops/renewd/internal/escalation/service"
	"github.com/agencyops/renewd/internal/orgcontext"
)

type recordingSender struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingSender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return "fake-ref", nil
}

func (r *recordingSender) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type tickFixture struct {
	t      *testing.T
	sched  *Scheduler
	db     *gorm.DB
	clock  *clock.FakeClock
	genID  *snowflake.Node
	orgID  snowflake.ID
	sender *recordingSender
}

func newTickFixture(t *testing.T) *tickFixture {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&assetdomain.RenewableAsset{},
		&clientdomain.Client{},
		&clientdomain.ChannelPreference{},
		&dispatchdomain.DispatchRecord{},
		&escalationdomain.EscalationRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	orgID := node.Generate()
	ownerID := node.Generate()

	appCfg := appconfig.Config{
		DefaultOrgID:       int64(orgID),
		DefaultOwnerID:     int64(ownerID),
		DispatchWorkers:    2,
		DispatchTimeout:    time.Second,
		DispatchMaxRetries: 0,
	}
	policy := appconfig.NewStaticPolicyHolder(appconfig.DefaultReminderPolicy())
	sender := &recordingSender{}
	registry := dispatchdomain.SenderRegistry{
		clientdomain.ChannelEmail: sender,
		clientdomain.ChannelInApp: sender,
	}

	clientSvc := clientservice.New(clientservice.Params{
		DB: db, Log: log, GenID: node, Clock: fc, Repo: clientrepository.Provide(),
	})
	dispatchSvc := dispatchservice.New(dispatchservice.Params{
		DB: db, Log: log, GenID: node, Clock: fc, Cfg: appCfg,
		Repo: dispatchrepository.Provide(), Senders: registry,
	})
	escalationSvc := escalationservice.New(escalationservice.Params{
		DB: db, Log: log, GenID: node, Clock: fc, Cfg: appCfg,
		Policy: policy, Repo: escalationrepository.Provide(),
	})

	sched, err := New(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         fc,
		AppConfig:     appCfg,
		Policy:        policy,
		Assets:        assetrepository.Provide(),
		ClientSvc:     clientSvc,
		DispatchSvc:   dispatchSvc,
		EscalationSvc: escalationSvc,
		Config:        Config{RunInterval: time.Minute, JobTimeout: 10 * time.Second},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	return &tickFixture{t: t, sched: sched, db: db, clock: fc, genID: node, orgID: orgID, sender: sender}
}

func (f *tickFixture) seedClient(email string) snowflake.ID {
	f.t.Helper()
	client := clientdomain.Client{
		ID:        f.genID.Generate(),
		OrgID:     f.orgID,
		Name:      "Acme Ltd",
		Email:     email,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	if err := f.db.Create(&client).Error; err != nil {
		f.t.Fatalf("seed client: %v", err)
	}
	return client.ID
}

func (f *tickFixture) seedAsset(clientID snowflake.ID, expiresIn time.Duration) *assetdomain.RenewableAsset {
	f.t.Helper()
	expires := f.clock.Now().Add(expiresIn)
	asset := &assetdomain.RenewableAsset{
		ID:        f.genID.Generate(),
		OrgID:     f.orgID,
		Kind:      assetdomain.KindDomain,
		Name:      "example.com",
		ClientID:  clientID,
		ExpiresAt: &expires,
		CreatedAt: f.clock.Now().Add(-300 * 24 * time.Hour),
		UpdatedAt: f.clock.Now().Add(-300 * 24 * time.Hour),
	}
	if err := f.db.Create(asset).Error; err != nil {
		f.t.Fatalf("seed asset: %v", err)
	}
	return asset
}

func (f *tickFixture) dispatchRecords() []dispatchdomain.DispatchRecord {
	f.t.Helper()
	var recs []dispatchdomain.DispatchRecord
	if err := f.db.Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		f.t.Fatalf("load dispatch records: %v", err)
	}
	return recs
}

func (f *tickFixture) escalationRecords() []escalationdomain.EscalationRecord {
	f.t.Helper()
	var recs []escalationdomain.EscalationRecord
	if err := f.db.Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		f.t.Fatalf("load escalation records: %v", err)
	}
	return recs
}

func TestTickDispatchesDueTierOnce(t *testing.T) {
	f := newTickFixture(t)
	clientID := f.seedClient("owner@acme.example")
	f.seedAsset(clientID, 7*24*time.Hour)

	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	recs := f.dispatchRecords()
	if len(recs) != 1 {
		t.Fatalf("expected one dispatch record, got %d", len(recs))
	}
	if recs[0].Outcome != dispatchdomain.OutcomeSent {
		t.Fatalf("expected SENT, got %s", recs[0].Outcome)
	}
	if f.sender.callCount() != 1 {
		t.Fatalf("expected one send, got %d", f.sender.callCount())
	}

	// A duplicate tick must not re-dispatch the tier.
	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if got := len(f.dispatchRecords()); got != 1 {
		t.Fatalf("expected still one record after duplicate tick, got %d", got)
	}
	if f.sender.callCount() != 1 {
		t.Fatalf("expected no further sends, got %d", f.sender.callCount())
	}
}

func TestTickDispatchesNextTierAsTimeAdvances(t *testing.T) {
	f := newTickFixture(t)
	clientID := f.seedClient("owner@acme.example")
	f.seedAsset(clientID, 14*24*time.Hour)

	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := len(f.dispatchRecords()); got != 1 {
		t.Fatalf("expected the 14-day tier only, got %d records", got)
	}

	f.clock.Advance(7 * 24 * time.Hour)
	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick after advance: %v", err)
	}
	if got := len(f.dispatchRecords()); got != 2 {
		t.Fatalf("expected the 7-day tier to fire, got %d records", got)
	}
}

func TestTickSuppressesOptedOutClient(t *testing.T) {
	f := newTickFixture(t)
	clientID := f.seedClient("owner@acme.example")
	if err := f.db.Model(&clientdomain.Client{}).Where("id = ?", clientID).
		Update("notify_opt_out", true).Error; err != nil {
		t.Fatalf("set opt out: %v", err)
	}
	f.seedAsset(clientID, 7*24*time.Hour)

	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	recs := f.dispatchRecords()
	if len(recs) != 1 {
		t.Fatalf("expected one suppressed record, got %d", len(recs))
	}
	if recs[0].Outcome != dispatchdomain.OutcomeSuppressed {
		t.Fatalf("expected SUPPRESSED, got %s", recs[0].Outcome)
	}
	if f.sender.callCount() != 0 {
		t.Fatalf("expected no sends for opted-out client, got %d", f.sender.callCount())
	}
}

func TestTickRaisesEscalationOnceBeforeCadence(t *testing.T) {
	f := newTickFixture(t)
	clientID := f.seedClient("owner@acme.example")
	f.seedAsset(clientID, -5*24*time.Hour)

	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	escalations := f.escalationRecords()
	if len(escalations) != 1 {
		t.Fatalf("expected one escalation, got %d", len(escalations))
	}
	if escalations[0].Reason != escalationdomain.ReasonExpired {
		t.Fatalf("expected EXPIRED reason, got %s", escalations[0].Reason)
	}

	// Before the repeat cadence elapses, no second record and no
	// second escalation notification.
	f.clock.Advance(24 * time.Hour)
	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if got := len(f.escalationRecords()); got != 1 {
		t.Fatalf("expected still one escalation, got %d", got)
	}
}

func TestDispatchDueNowRequiresOrganization(t *testing.T) {
	f := newTickFixture(t)

	_, err := f.sched.DispatchDueNow(context.Background())
	if err == nil {
		t.Fatal("expected error without organization context")
	}
}

func TestDispatchDueNowReportsCounts(t *testing.T) {
	f := newTickFixture(t)
	clientID := f.seedClient("owner@acme.example")
	f.seedAsset(clientID, 7*24*time.Hour)

	ctx := orgcontext.WithOrgID(context.Background(), int64(f.orgID))
	outcome, err := f.sched.DispatchDueNow(ctx)
	if err != nil {
		t.Fatalf("dispatch due now: %v", err)
	}
	if outcome.Sent != 1 || outcome.Suppressed != 0 || outcome.Failed != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}
