package status

import (
	"testing"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
)

func testAsset(expiresAt time.Time, lastRenewalAt *time.Time) *assetdomain.RenewableAsset {
	return &assetdomain.RenewableAsset{
		ID:            1,
		Kind:          assetdomain.KindDomain,
		ExpiresAt:     &expiresAt,
		LastRenewalAt: lastRenewalAt,
		CreatedAt:     expiresAt.Add(-365 * 24 * time.Hour),
	}
}

func TestResolveExpiringSoonAtTwentyNineDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(29*24*time.Hour), nil)

	res := Resolve(asset, now, config.DefaultReminderPolicy())
	if res.Status != ExpiringSoon {
		t.Fatalf("expected status %q, got %q", ExpiringSoon, res.Status)
	}
	if res.DaysRemaining != 29 {
		t.Fatalf("expected 29 days remaining, got %d", res.DaysRemaining)
	}
}

func TestResolveActiveBeyondThreshold(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(31*24*time.Hour), nil)

	res := Resolve(asset, now, config.DefaultReminderPolicy())
	if res.Status != Active {
		t.Fatalf("expected status %q, got %q", Active, res.Status)
	}
}

func TestResolveExpiredWithNegativeDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-5*24*time.Hour), nil)

	res := Resolve(asset, now, config.DefaultReminderPolicy())
	if res.Status != Expired {
		t.Fatalf("expected status %q, got %q", Expired, res.Status)
	}
	if res.DaysRemaining != -5 {
		t.Fatalf("expected -5 days remaining, got %d", res.DaysRemaining)
	}
}

func TestResolvePartialOverdueDayIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-1*time.Hour), nil)

	res := Resolve(asset, now, config.DefaultReminderPolicy())
	if res.Status != Expired {
		t.Fatalf("expected status %q, got %q", Expired, res.Status)
	}
	if res.DaysRemaining != -1 {
		t.Fatalf("expected -1 days remaining, got %d", res.DaysRemaining)
	}
}

func TestResolveRecentlyRenewedOverridesExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	renewedAt := now.Add(-2 * 24 * time.Hour)
	asset := testAsset(now.Add(300*24*time.Hour), &renewedAt)

	res := Resolve(asset, now, config.DefaultReminderPolicy())
	if res.Status != RecentlyRenewed {
		t.Fatalf("expected status %q, got %q", RecentlyRenewed, res.Status)
	}
}

func TestResolveGraceWindowExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	renewedAt := now.Add(-8 * 24 * time.Hour)
	asset := testAsset(now.Add(300*24*time.Hour), &renewedAt)

	res := Resolve(asset, now, config.DefaultReminderPolicy())
	if res.Status != Active {
		t.Fatalf("expected grace window to have lapsed, got %q", res.Status)
	}
}

func TestResolveMonotonicInTime(t *testing.T) {
	expiresAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	asset := testAsset(expiresAt, nil)
	policy := config.DefaultReminderPolicy()

	sawExpired := false
	for day := -60; day <= 60; day++ {
		now := expiresAt.Add(time.Duration(day) * 24 * time.Hour)
		res := Resolve(asset, now, policy)
		if sawExpired && res.Status != Expired {
			t.Fatalf("status regressed from Expired to %q at day %d", res.Status, day)
		}
		if res.Status == Expired {
			sawExpired = true
		}
	}
	if !sawExpired {
		t.Fatal("expected the asset to expire within the scanned window")
	}
}

func TestResolveFarDates(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	farFuture := testAsset(now.AddDate(500, 0, 0), nil)
	farPast := testAsset(now.AddDate(-500, 0, 0), nil)
	policy := config.DefaultReminderPolicy()

	if res := Resolve(farFuture, now, policy); res.Status != Active {
		t.Fatalf("expected far-future asset to be Active, got %q", res.Status)
	}
	if res := Resolve(farPast, now, policy); res.Status != Expired {
		t.Fatalf("expected far-past asset to be Expired, got %q", res.Status)
	}
}
