package domain

import (
	"testing"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/internal/reminder"
	"github.com/agencyops/renewd/internal/status"
)

func testAsset(expiresAt time.Time) *assetdomain.RenewableAsset {
	return &assetdomain.RenewableAsset{
		ID:        42,
		Kind:      assetdomain.KindDomain,
		ExpiresAt: &expiresAt,
		CreatedAt: expiresAt.Add(-365 * 24 * time.Hour),
	}
}

func TestDecideRaisesAfterGracePeriod(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-5 * 24 * time.Hour))

	d := Decide(asset, status.Expired, now, config.DefaultReminderPolicy(), nil, nil)
	if d.Action != ActionRaise {
		t.Fatalf("expected %q, got %q", ActionRaise, d.Action)
	}
	if d.Reason != ReasonExpired {
		t.Fatalf("expected reason %q, got %q", ReasonExpired, d.Reason)
	}
}

func TestDecideNoRaiseWithinGracePeriod(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-2 * 24 * time.Hour))

	d := Decide(asset, status.Expired, now, config.DefaultReminderPolicy(), nil, nil)
	if d.Action != ActionNone {
		t.Fatalf("expected %q before escalate_after_days elapse, got %q", ActionNone, d.Action)
	}
}

func TestDecideNoDoubleRaiseBeforeRepeatCadence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-5 * 24 * time.Hour))
	open := &EscalationRecord{
		ID:             1,
		AssetID:        asset.ID,
		RaisedAt:       now.Add(-24 * time.Hour),
		LastNotifiedAt: now.Add(-24 * time.Hour),
	}

	d := Decide(asset, status.Expired, now, config.DefaultReminderPolicy(), open, nil)
	if d.Action != ActionNone {
		t.Fatalf("expected no re-raise before repeat cadence, got %q", d.Action)
	}
}

func TestDecideRenotifiesOnRepeatCadence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(-10 * 24 * time.Hour))
	open := &EscalationRecord{
		ID:             1,
		AssetID:        asset.ID,
		RaisedAt:       now.Add(-4 * 24 * time.Hour),
		LastNotifiedAt: now.Add(-4 * 24 * time.Hour),
	}

	d := Decide(asset, status.Expired, now, config.DefaultReminderPolicy(), open, nil)
	if d.Action != ActionRenotify {
		t.Fatalf("expected %q, got %q", ActionRenotify, d.Action)
	}
}

func TestDecideResolvesAfterRenewal(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(300 * 24 * time.Hour))
	open := &EscalationRecord{
		ID:             1,
		AssetID:        asset.ID,
		RaisedAt:       now.Add(-10 * 24 * time.Hour),
		LastNotifiedAt: now.Add(-10 * 24 * time.Hour),
	}

	d := Decide(asset, status.RecentlyRenewed, now, config.DefaultReminderPolicy(), open, nil)
	if d.Action != ActionResolve {
		t.Fatalf("expected %q, got %q", ActionResolve, d.Action)
	}
}

func TestDecideUnackedRemindersPreExpiry(t *testing.T) {
	policy := config.DefaultReminderPolicy()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// 10 days out: the 30-day and 14-day tiers have fired.
	asset := testAsset(now.Add(10 * 24 * time.Hour))

	sentAt := now.Add(-4 * 24 * time.Hour)
	dispatches := []*dispatchdomain.DispatchRecord{
		{TierKey: reminder.TierKey(asset, 30, false), Outcome: dispatchdomain.OutcomeSent, SentAt: sentAt},
		{TierKey: reminder.TierKey(asset, 14, false), Outcome: dispatchdomain.OutcomeSent, SentAt: sentAt},
	}

	d := Decide(asset, status.ExpiringSoon, now, policy, nil, dispatches)
	if d.Action != ActionRaise {
		t.Fatalf("expected %q for unacknowledged reminders, got %q", ActionRaise, d.Action)
	}
	if d.Reason != ReasonUnackedReminders {
		t.Fatalf("expected reason %q, got %q", ReasonUnackedReminders, d.Reason)
	}
}

func TestDecideAcknowledgedReminderBlocksEscalation(t *testing.T) {
	policy := config.DefaultReminderPolicy()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asset := testAsset(now.Add(10 * 24 * time.Hour))

	sentAt := now.Add(-4 * 24 * time.Hour)
	ackAt := now.Add(-3 * 24 * time.Hour)
	dispatches := []*dispatchdomain.DispatchRecord{
		{TierKey: reminder.TierKey(asset, 30, false), Outcome: dispatchdomain.OutcomeSent, SentAt: sentAt, AcknowledgedAt: &ackAt},
		{TierKey: reminder.TierKey(asset, 14, false), Outcome: dispatchdomain.OutcomeSent, SentAt: sentAt},
	}

	d := Decide(asset, status.ExpiringSoon, now, policy, nil, dispatches)
	if d.Action != ActionNone {
		t.Fatalf("expected acknowledgment to block escalation, got %q", d.Action)
	}
}
