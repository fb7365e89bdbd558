package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	assetrepository "github.com/agencyops/renewd/internal/asset/repository"
	"github.com/agencyops/renewd/internal/clock"
	escalationdomain "github.com/agencyops/renewd/internal/escalation/domain"
	"github.com/agencyops/renewd/internal/orgcontext"
	"github.com/agencyops/renewd/internal/reminder"
	"github.com/agencyops/renewd/internal/renewal/domain"
	"github.com/agencyops/renewd/pkg/db/pagination"
)

// -- Mocks --

type escalationMock struct {
	mu       sync.Mutex
	resolved []snowflake.ID
}

func (m *escalationMock) List(ctx context.Context, req escalationdomain.ListEscalationRequest) (escalationdomain.ListEscalationResponse, error) {
	return escalationdomain.ListEscalationResponse{}, nil
}

func (m *escalationMock) Resolve(ctx context.Context, req escalationdomain.ResolveEscalationRequest) (escalationdomain.EscalationRecord, error) {
	return escalationdomain.EscalationRecord{}, nil
}

func (m *escalationMock) Evaluate(ctx context.Context, req escalationdomain.EvaluateRequest) (escalationdomain.EvaluateResult, error) {
	return escalationdomain.EvaluateResult{}, nil
}

func (m *escalationMock) ResolveForAsset(ctx context.Context, assetID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, assetID)
	return nil
}

func (m *escalationMock) resolvedIDs() []snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]snowflake.ID(nil), m.resolved...)
}

type triggerMock struct {
	mu    sync.Mutex
	fires int
}

func (m *triggerMock) TriggerNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fires++
}

func (m *triggerMock) fired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fires
}

type assetRepoMock struct {
	mock.Mock
}

func (m *assetRepoMock) Insert(ctx context.Context, db *gorm.DB, asset *assetdomain.RenewableAsset) error {
	return m.Called(ctx, db, asset).Error(0)
}

func (m *assetRepoMock) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*assetdomain.RenewableAsset, error) {
	args := m.Called(ctx, db, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assetdomain.RenewableAsset), args.Error(1)
}

func (m *assetRepoMock) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter assetdomain.ListAssetFilter, page pagination.Pagination) ([]*assetdomain.RenewableAsset, error) {
	return nil, nil
}

func (m *assetRepoMock) ListSchedulable(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*assetdomain.RenewableAsset, error) {
	return nil, nil
}

func (m *assetRepoMock) ListInvalidExpiry(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*assetdomain.RenewableAsset, error) {
	return nil, nil
}

func (m *assetRepoMock) ApplyRenewal(ctx context.Context, db *gorm.DB, asset *assetdomain.RenewableAsset, expectedUpdatedAt time.Time) (bool, error) {
	args := m.Called(ctx, db, asset, expectedUpdatedAt)
	return args.Bool(0), args.Error(1)
}

// -- Fixture --

type fixture struct {
	svc         domain.Service
	db          *gorm.DB
	clock       *clock.FakeClock
	genID       *snowflake.Node
	orgID       snowflake.ID
	escalations *escalationMock
	trigger     *triggerMock
}

func newFixture(t *testing.T, assets assetdomain.Repository) *fixture {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&assetdomain.RenewableAsset{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	escalations := &escalationMock{}
	trigger := &triggerMock{}

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       fc,
		Assets:      assets,
		Escalations: escalations,
		Trigger:     trigger,
	})

	return &fixture{
		svc:         svc,
		db:          db,
		clock:       fc,
		genID:       node,
		orgID:       node.Generate(),
		escalations: escalations,
		trigger:     trigger,
	}
}

func (f *fixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(f.orgID))
}

func (f *fixture) seedAsset(t *testing.T, expiresAt time.Time) *assetdomain.RenewableAsset {
	t.Helper()
	asset := &assetdomain.RenewableAsset{
		ID:        f.genID.Generate(),
		OrgID:     f.orgID,
		Kind:      assetdomain.KindDomain,
		Name:      "example.com",
		ClientID:  f.genID.Generate(),
		ExpiresAt: &expiresAt,
		CreatedAt: f.clock.Now().Add(-350 * 24 * time.Hour),
		UpdatedAt: f.clock.Now().Add(-350 * 24 * time.Hour),
	}
	require.NoError(t, f.db.Create(asset).Error)
	return asset
}

// -- Tests --

func TestRenewBatch_RequiresOrganization(t *testing.T) {
	f := newFixture(t, assetrepository.Provide())

	_, err := f.svc.RenewBatch(context.Background(), domain.RenewBatchRequest{
		Items: []domain.RenewalItem{{AssetID: "1", ExpiresAt: time.Now()}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestRenewBatch_RejectsEmptyBatch(t *testing.T) {
	f := newFixture(t, assetrepository.Provide())

	_, err := f.svc.RenewBatch(f.ctx(), domain.RenewBatchRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func TestRenewBatch_RenewsAndResetsCycle(t *testing.T) {
	f := newFixture(t, assetrepository.Provide())
	asset := f.seedAsset(t, f.clock.Now().Add(15*24*time.Hour))
	oldKey := reminder.TierKey(asset, 7, false)

	newExpiry := f.clock.Now().Add(380 * 24 * time.Hour)
	resp, err := f.svc.RenewBatch(f.ctx(), domain.RenewBatchRequest{
		Items: []domain.RenewalItem{{AssetID: asset.ID.String(), ExpiresAt: newExpiry}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Renewed)
	assert.Equal(t, 0, resp.Rejected)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.ResultRenewed, resp.Results[0].Result)

	var stored assetdomain.RenewableAsset
	require.NoError(t, f.db.First(&stored, "id = ?", asset.ID).Error)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.Equal(newExpiry))
	require.NotNil(t, stored.LastRenewalAt)
	assert.True(t, stored.LastRenewalAt.Equal(f.clock.Now()))

	// The renewal starts a new cycle, so prior-cycle tier keys no
	// longer match and old dispatch facts cannot suppress new tiers.
	assert.NotEqual(t, oldKey, reminder.TierKey(&stored, 7, false))

	assert.Equal(t, []snowflake.ID{asset.ID}, f.escalations.resolvedIDs())
	assert.Equal(t, 1, f.trigger.fired())
}

func TestRenewBatch_PartialFailureIsolation(t *testing.T) {
	f := newFixture(t, assetrepository.Provide())
	asset := f.seedAsset(t, f.clock.Now().Add(10*24*time.Hour))
	missing := f.genID.Generate()

	resp, err := f.svc.RenewBatch(f.ctx(), domain.RenewBatchRequest{
		Items: []domain.RenewalItem{
			{AssetID: asset.ID.String(), ExpiresAt: f.clock.Now().Add(375 * 24 * time.Hour)},
			{AssetID: missing.String(), ExpiresAt: f.clock.Now().Add(375 * 24 * time.Hour)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Renewed)
	assert.Equal(t, 1, resp.Rejected)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, domain.ResultRenewed, resp.Results[0].Result)
	assert.Equal(t, domain.ResultRejected, resp.Results[1].Result)
	assert.Equal(t, domain.ReasonNotFound, resp.Results[1].Reason)
}

func TestRenewBatch_RejectsNonForwardExpiry(t *testing.T) {
	f := newFixture(t, assetrepository.Provide())
	asset := f.seedAsset(t, f.clock.Now().Add(30*24*time.Hour))
	backdated := f.clock.Now().Add(5 * 24 * time.Hour)

	resp, err := f.svc.RenewBatch(f.ctx(), domain.RenewBatchRequest{
		Items: []domain.RenewalItem{{AssetID: asset.ID.String(), ExpiresAt: backdated}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.ResultRejected, resp.Results[0].Result)
	assert.Equal(t, domain.ReasonExpiryNotAfter, resp.Results[0].Reason)
	assert.Empty(t, f.escalations.resolvedIDs())
	assert.Equal(t, 0, f.trigger.fired())

	// An explicit override permits the correction.
	resp, err = f.svc.RenewBatch(f.ctx(), domain.RenewBatchRequest{
		Items: []domain.RenewalItem{{AssetID: asset.ID.String(), ExpiresAt: backdated, AllowBackdate: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Renewed)
}

func TestRenewBatch_ConcurrencyConflictRejected(t *testing.T) {
	repo := &assetRepoMock{}
	f := newFixture(t, repo)

	expiresAt := f.clock.Now().Add(20 * 24 * time.Hour)
	asset := &assetdomain.RenewableAsset{
		ID:        f.genID.Generate(),
		OrgID:     f.orgID,
		Kind:      assetdomain.KindHosting,
		Name:      "shared-hosting-7",
		ExpiresAt: &expiresAt,
		UpdatedAt: f.clock.Now().Add(-time.Hour),
	}
	repo.On("FindByID", mock.Anything, mock.Anything, f.orgID, asset.ID).Return(asset, nil)
	// Another writer updated the row after the read.
	repo.On("ApplyRenewal", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	resp, err := f.svc.RenewBatch(f.ctx(), domain.RenewBatchRequest{
		Items: []domain.RenewalItem{{AssetID: asset.ID.String(), ExpiresAt: f.clock.Now().Add(380 * 24 * time.Hour)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.ResultRejected, resp.Results[0].Result)
	assert.Equal(t, domain.ReasonConcurrencyConflict, resp.Results[0].Reason)
	assert.Empty(t, f.escalations.resolvedIDs())
	assert.Equal(t, 0, f.trigger.fired())
}
