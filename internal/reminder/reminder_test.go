package reminder

import (
	"testing"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
)

func testAsset(expiresAt time.Time, autoRenew bool) *assetdomain.RenewableAsset {
	return &assetdomain.RenewableAsset{
		ID:        42,
		Kind:      assetdomain.KindDomain,
		ExpiresAt: &expiresAt,
		AutoRenew: autoRenew,
		CreatedAt: expiresAt.Add(-365 * 24 * time.Hour),
	}
}

func TestDueTiersSevenDayTierFires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(7*24*time.Hour), false)

	tiers := DueTiers(asset, now, config.DefaultReminderPolicy(), SentIndex{})
	if len(tiers) != 1 {
		t.Fatalf("expected exactly one due tier, got %d", len(tiers))
	}
	if tiers[0].OffsetDays != 7 || tiers[0].PostExpiry {
		t.Fatalf("expected the 7-day pre-expiry tier, got offset %d post=%v", tiers[0].OffsetDays, tiers[0].PostExpiry)
	}
}

func TestDueTiersMissedTiersWithinGraceOrdered(t *testing.T) {
	// The 14-day tier fired one day ago, the 7-day tier fires in the
	// future. Grace is 2 days so only the 14-day tier is returned.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(13*24*time.Hour), false)

	tiers := DueTiers(asset, now, config.DefaultReminderPolicy(), SentIndex{})
	if len(tiers) != 1 {
		t.Fatalf("expected one due tier, got %d", len(tiers))
	}
	if tiers[0].OffsetDays != 14 {
		t.Fatalf("expected the 14-day tier, got %d", tiers[0].OffsetDays)
	}
}

func TestDueTiersMultipleDueSortedByFireDate(t *testing.T) {
	policy := config.DefaultReminderPolicy()
	policy.MissedTierGraceDays = 30

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(7*24*time.Hour), false)

	tiers := DueTiers(asset, now, policy, SentIndex{})
	if len(tiers) != 3 {
		t.Fatalf("expected the 30-, 14- and 7-day tiers within grace, got %d", len(tiers))
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].FireAt.Before(tiers[i-1].FireAt) {
			t.Fatalf("expected ascending fire dates, got %v before %v", tiers[i].FireAt, tiers[i-1].FireAt)
		}
	}
	if tiers[0].OffsetDays != 30 || tiers[1].OffsetDays != 14 || tiers[2].OffsetDays != 7 {
		t.Fatalf("expected tiers [30 14 7], got [%d %d %d]", tiers[0].OffsetDays, tiers[1].OffsetDays, tiers[2].OffsetDays)
	}
}

func TestDueTiersDedupAgainstSentIndex(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(7*24*time.Hour), false)

	sent := SentIndex{TierKey(asset, 7, false): true}
	tiers := DueTiers(asset, now, config.DefaultReminderPolicy(), sent)
	if len(tiers) != 0 {
		t.Fatalf("expected no due tiers once dispatched, got %d", len(tiers))
	}
}

func TestDueTiersIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(1*24*time.Hour), false)
	policy := config.DefaultReminderPolicy()
	sent := SentIndex{}

	first := DueTiers(asset, now, policy, sent)
	second := DueTiers(asset, now, policy, sent)
	if len(first) != len(second) {
		t.Fatalf("expected identical results, got %d then %d tiers", len(first), len(second))
	}
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Fatalf("tier %d differs between evaluations: %q vs %q", i, first[i].Key, second[i].Key)
		}
	}
}

func TestDueTiersAutoRenewSkipsPreExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(7*24*time.Hour), true)

	tiers := DueTiers(asset, now, config.DefaultReminderPolicy(), SentIndex{})
	if len(tiers) != 0 {
		t.Fatalf("expected auto-renew asset to skip pre-expiry tiers, got %d", len(tiers))
	}
}

func TestDueTiersAutoRenewKeepsPostExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-1*24*time.Hour), true)

	tiers := DueTiers(asset, now, config.DefaultReminderPolicy(), SentIndex{})
	if len(tiers) != 1 {
		t.Fatalf("expected the post-expiry safety net tier, got %d", len(tiers))
	}
	if !tiers[0].PostExpiry || tiers[0].OffsetDays != 1 {
		t.Fatalf("expected post-expiry offset 1, got offset %d post=%v", tiers[0].OffsetDays, tiers[0].PostExpiry)
	}
}

func TestDueTiersNewCycleResetsKeys(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(7*24*time.Hour), false)

	before := TierKey(asset, 7, false)

	renewedAt := now
	asset.LastRenewalAt = &renewedAt
	after := TierKey(asset, 7, false)

	if before == after {
		t.Fatalf("expected tier key to change across cycles, both %q", before)
	}
}

func TestDueTiersUnschedulableAssetReturnsNothing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := &assetdomain.RenewableAsset{ID: 7, Kind: assetdomain.KindHosting}

	if tiers := DueTiers(asset, now, config.DefaultReminderPolicy(), SentIndex{}); len(tiers) != 0 {
		t.Fatalf("expected no tiers for asset without expiry, got %d", len(tiers))
	}
}
