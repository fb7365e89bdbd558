package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	assetrepository "github.com/agencyops/renewd/internal/asset/repository"
	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/config"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/internal/reminder"
	renewaldomain "github.com/agencyops/renewd/internal/renewal/domain"
)

type fakeRenewalService struct {
	lastReq renewaldomain.RenewBatchRequest
	resp    renewaldomain.RenewBatchResponse
	err     error
}

func (f *fakeRenewalService) RenewBatch(ctx context.Context, req renewaldomain.RenewBatchRequest) (renewaldomain.RenewBatchResponse, error) {
	_ = ctx
	f.lastReq = req
	if f.err != nil {
		return renewaldomain.RenewBatchResponse{}, f.err
	}
	return f.resp, nil
}

type fakeDispatchService struct {
	ackErr error
}

func (f *fakeDispatchService) Dispatch(ctx context.Context, req dispatchdomain.SendRequest) (dispatchdomain.SendResult, error) {
	_ = ctx
	_ = req
	return dispatchdomain.ResultSuppressed, nil
}

func (f *fakeDispatchService) DispatchBatch(ctx context.Context, reqs []dispatchdomain.SendRequest) (dispatchdomain.BatchOutcome, error) {
	_ = ctx
	_ = reqs
	return dispatchdomain.BatchOutcome{}, nil
}

func (f *fakeDispatchService) List(ctx context.Context, req dispatchdomain.ListDispatchRequest) (dispatchdomain.ListDispatchResponse, error) {
	_ = ctx
	_ = req
	return dispatchdomain.ListDispatchResponse{}, nil
}

func (f *fakeDispatchService) Acknowledge(ctx context.Context, req dispatchdomain.AcknowledgeRequest) (dispatchdomain.DispatchRecord, error) {
	_ = ctx
	_ = req
	if f.ackErr != nil {
		return dispatchdomain.DispatchRecord{}, f.ackErr
	}
	return dispatchdomain.DispatchRecord{}, nil
}

func (f *fakeDispatchService) SentIndex(ctx context.Context, assetIDs []snowflake.ID) (reminder.SentIndex, error) {
	_ = ctx
	_ = assetIDs
	return nil, nil
}

func (f *fakeDispatchService) ListForAssetSince(ctx context.Context, assetID snowflake.ID, since time.Time) ([]*dispatchdomain.DispatchRecord, error) {
	_ = ctx
	_ = assetID
	_ = since
	return nil, nil
}

func newTestEngine(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	srv.engine = r
	srv.registerAPIRoutes()
	return r
}

func TestRenewAssetsParsesItems(t *testing.T) {
	renewalSvc := &fakeRenewalService{
		resp: renewaldomain.RenewBatchResponse{Renewed: 1},
	}
	srv := &Server{
		cfg:        config.Config{DefaultOrgID: 1},
		renewalSvc: renewalSvc,
	}
	router := newTestEngine(srv)

	body := `{"items":[{"asset_id":"42","expires_at":"2027-01-15","allow_backdate":true}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/renewals", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(renewalSvc.lastReq.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(renewalSvc.lastReq.Items))
	}
	item := renewalSvc.lastReq.Items[0]
	if item.AssetID != "42" {
		t.Fatalf("expected asset id 42, got %q", item.AssetID)
	}
	if !item.AllowBackdate {
		t.Fatal("expected allow_backdate to carry through")
	}
	want := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	if !item.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, item.ExpiresAt)
	}
}

func TestRenewAssetsEmptyBatchReturns400(t *testing.T) {
	srv := &Server{
		cfg:        config.Config{DefaultOrgID: 1},
		renewalSvc: &fakeRenewalService{err: renewaldomain.ErrEmptyBatch},
	}
	router := newTestEngine(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/renewals", bytes.NewBufferString(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestAcknowledgeDispatchNotFoundReturns404(t *testing.T) {
	srv := &Server{
		cfg:         config.Config{DefaultOrgID: 1},
		dispatchSvc: &fakeDispatchService{ackErr: dispatchdomain.ErrNotFound},
	}
	router := newTestEngine(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/dispatches/99/ack", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestOrgContextRejectsMalformedHeader(t *testing.T) {
	srv := &Server{
		cfg:        config.Config{DefaultOrgID: 1},
		renewalSvc: &fakeRenewalService{},
	}
	router := newTestEngine(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/renewals", bytes.NewBufferString(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrg, "not-a-snowflake")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUpdateReminderPolicyRejectsNegativeOffsets(t *testing.T) {
	srv := &Server{
		cfg:    config.Config{DefaultOrgID: 1},
		policy: config.NewStaticPolicyHolder(config.DefaultReminderPolicy()),
	}
	router := newTestEngine(srv)

	body := `{"offsets_days":[-3]}`
	req := httptest.NewRequest(http.MethodPut, "/v1/settings/reminder-policy", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if got := srv.policy.Get().OffsetsDays[0]; got != 30 {
		t.Fatalf("expected policy to stay at defaults, got first offset %d", got)
	}
}

func TestRenewalAlertsCountsExpiringAssets(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&assetdomain.RenewableAsset{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orgID := snowflake.ID(1)

	seed := func(id int64, daysUntilExpiry int) {
		expiry := now.AddDate(0, 0, daysUntilExpiry)
		asset := &assetdomain.RenewableAsset{
			ID:        snowflake.ID(id),
			OrgID:     orgID,
			Kind:      assetdomain.KindDomain,
			Name:      "asset",
			ClientID:  snowflake.ID(10),
			ExpiresAt: &expiry,
			CreatedAt: now.AddDate(0, -6, 0),
			UpdatedAt: now.AddDate(0, -6, 0),
		}
		if err := db.Create(asset).Error; err != nil {
			t.Fatalf("seed asset: %v", err)
		}
	}
	seed(100, 7)
	seed(101, 14)
	seed(102, -3)
	seed(103, 200)

	srv := &Server{
		cfg:       config.Config{DefaultOrgID: int64(orgID)},
		db:        db,
		clk:       clock.NewFakeClock(now),
		policy:    config.NewStaticPolicyHolder(config.DefaultReminderPolicy()),
		assetRepo: assetrepository.Provide(),
	}
	router := newTestEngine(srv)

	req := httptest.NewRequest(http.MethodGet, "/v1/renewal-alerts", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Data struct {
			ExpiringSoon int `json:"expiring_soon"`
			Expired      int `json:"expired"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.ExpiringSoon != 2 {
		t.Fatalf("expected 2 expiring soon, got %d", payload.Data.ExpiringSoon)
	}
	if payload.Data.Expired != 1 {
		t.Fatalf("expected 1 expired, got %d", payload.Data.Expired)
	}
}
