package alerts

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
	"github.com/agencyops/renewd/internal/status"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newAsset(t *testing.T, node *snowflake.Node, name string, expiresIn time.Duration) *assetdomain.RenewableAsset {
	t.Helper()
	expires := testNow.Add(expiresIn)
	return &assetdomain.RenewableAsset{
		ID:        node.Generate(),
		Kind:      assetdomain.KindDomain,
		Name:      name,
		ExpiresAt: &expires,
		CreatedAt: testNow.Add(-365 * 24 * time.Hour),
	}
}

func TestSummarizeBucketsByStatus(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	policy := config.DefaultReminderPolicy()

	assets := []*assetdomain.RenewableAsset{
		newAsset(t, node, "active.com", 90*24*time.Hour),
		newAsset(t, node, "soon.com", 10*24*time.Hour),
		newAsset(t, node, "overdue.com", -5*24*time.Hour),
	}

	summary := Summarize(assets, testNow, policy)

	if summary.ExpiringSoonCount != 1 {
		t.Fatalf("expected 1 expiring soon, got %d", summary.ExpiringSoonCount)
	}
	if summary.ExpiredCount != 1 {
		t.Fatalf("expected 1 expired, got %d", summary.ExpiredCount)
	}
	if len(summary.ExpiringList) != 1 || summary.ExpiringList[0].Name != "soon.com" {
		t.Fatalf("unexpected expiring list: %+v", summary.ExpiringList)
	}
	if len(summary.ExpiredList) != 1 || summary.ExpiredList[0].Name != "overdue.com" {
		t.Fatalf("unexpected expired list: %+v", summary.ExpiredList)
	}
	if summary.ExpiredList[0].Status != status.Expired {
		t.Fatalf("expected EXPIRED status, got %s", summary.ExpiredList[0].Status)
	}
	if summary.Truncated {
		t.Fatal("expected no truncation below the page cap")
	}
}

func TestSummarizeSkipsUnschedulableAssets(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	policy := config.DefaultReminderPolicy()

	assets := []*assetdomain.RenewableAsset{
		{ID: node.Generate(), Name: "no-expiry.com", Kind: assetdomain.KindDomain},
		nil,
		newAsset(t, node, "soon.com", 5*24*time.Hour),
	}

	summary := Summarize(assets, testNow, policy)
	if summary.ExpiringSoonCount != 1 {
		t.Fatalf("expected 1 expiring soon, got %d", summary.ExpiringSoonCount)
	}
}

func TestSummarizeSortsByUrgency(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	policy := config.DefaultReminderPolicy()

	assets := []*assetdomain.RenewableAsset{
		newAsset(t, node, "soon-20.com", 20*24*time.Hour),
		newAsset(t, node, "soon-3.com", 3*24*time.Hour),
		newAsset(t, node, "overdue-1.com", -1*24*time.Hour),
		newAsset(t, node, "overdue-9.com", -9*24*time.Hour),
	}

	summary := Summarize(assets, testNow, policy)

	if summary.ExpiringList[0].Name != "soon-3.com" {
		t.Fatalf("expected soonest first, got %s", summary.ExpiringList[0].Name)
	}
	if summary.ExpiredList[0].Name != "overdue-9.com" {
		t.Fatalf("expected most overdue first, got %s", summary.ExpiredList[0].Name)
	}
}

// Counts must reflect true totals even when lists are capped.
func TestSummarizeCountsSurviveTruncation(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	policy := config.DefaultReminderPolicy()
	policy.AlertPageCap = 3

	var assets []*assetdomain.RenewableAsset
	for i := 0; i < 10; i++ {
		assets = append(assets, newAsset(t, node, "soon.com", time.Duration(i+1)*24*time.Hour))
	}

	summary := Summarize(assets, testNow, policy)

	if summary.ExpiringSoonCount != 10 {
		t.Fatalf("expected true total 10, got %d", summary.ExpiringSoonCount)
	}
	if len(summary.ExpiringList) != 3 {
		t.Fatalf("expected capped list of 3, got %d", len(summary.ExpiringList))
	}
	if !summary.Truncated {
		t.Fatal("expected truncation flag")
	}
}

// Below the cap the count always equals the list length.
func TestSummarizeConsistencyBelowCap(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	policy := config.DefaultReminderPolicy()

	for n := 0; n < 20; n++ {
		var assets []*assetdomain.RenewableAsset
		for i := 0; i < n; i++ {
			assets = append(assets, newAsset(t, node, "soon.com", time.Duration(i+1)*24*time.Hour))
		}
		summary := Summarize(assets, testNow, policy)
		if summary.ExpiringSoonCount != len(summary.ExpiringList) {
			t.Fatalf("count %d disagrees with list length %d", summary.ExpiringSoonCount, len(summary.ExpiringList))
		}
	}
}
