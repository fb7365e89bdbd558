package domain

import (
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/internal/reminder"
	"github.com/agencyops/renewd/internal/status"
)

// Action is the escalation engine's decision for one asset on one tick.
type Action string

const (
	ActionNone     Action = "NONE"
	ActionRaise    Action = "RAISE"
	ActionRenotify Action = "RENOTIFY"
	ActionResolve  Action = "RESOLVE"
)

// Decision pairs the action with the reason used when raising.
type Decision struct {
	Action Action
	Reason Reason
}

// Decide derives the escalation transition for an asset. The decision is
// pure state over data already validated by the status resolver; it never
// fails. Expired escalation takes precedence; the unacknowledged-reminders
// rule applies pre-expiry only.
func Decide(
	asset *assetdomain.RenewableAsset,
	st status.RenewalStatus,
	now time.Time,
	policy config.ReminderPolicy,
	open *EscalationRecord,
	cycleDispatches []*dispatchdomain.DispatchRecord,
) Decision {
	now = now.UTC()

	if st != status.Expired {
		if open.Open() {
			// A renewal moved the asset out of Expired.
			if st == status.RecentlyRenewed || st == status.Active {
				return Decision{Action: ActionResolve}
			}
		}
	}

	escalateAfter := time.Duration(policy.EscalateAfterDays) * 24 * time.Hour
	repeatEvery := time.Duration(policy.EscalationRepeatDays) * 24 * time.Hour

	overdue := st == status.Expired &&
		asset.Schedulable() &&
		now.Sub(asset.ExpiresAt.UTC()) >= escalateAfter

	unacked := st == status.ExpiringSoon &&
		allPreExpiryTiersUnacked(asset, now, policy, escalateAfter, cycleDispatches)

	if !overdue && !unacked {
		return Decision{Action: ActionNone}
	}

	if open.Open() {
		if now.Sub(open.LastNotifiedAt.UTC()) >= repeatEvery {
			return Decision{Action: ActionRenotify}
		}
		return Decision{Action: ActionNone}
	}

	reason := ReasonExpired
	if !overdue {
		reason = ReasonUnackedReminders
	}
	return Decision{Action: ActionRaise, Reason: reason}
}

// allPreExpiryTiersUnacked reports whether every pre-expiry tier that has
// fired so far had a dispatch attempt that went unacknowledged beyond the
// escalation threshold.
func allPreExpiryTiersUnacked(
	asset *assetdomain.RenewableAsset,
	now time.Time,
	policy config.ReminderPolicy,
	escalateAfter time.Duration,
	cycleDispatches []*dispatchdomain.DispatchRecord,
) bool {
	if asset == nil || !asset.Schedulable() || asset.AutoRenew {
		return false
	}

	expiresAt := asset.ExpiresAt.UTC()
	fired := 0
	for _, offset := range policy.OffsetsDays {
		fireAt := expiresAt.Add(-time.Duration(offset) * 24 * time.Hour)
		if fireAt.After(now) {
			continue
		}
		fired++
		key := reminder.TierKey(asset, offset, false)
		if !tierUnackedPastThreshold(cycleDispatches, now, escalateAfter, key) {
			return false
		}
	}
	return fired > 0
}

func tierUnackedPastThreshold(dispatches []*dispatchdomain.DispatchRecord, now time.Time, escalateAfter time.Duration, tierKey string) bool {
	for _, rec := range dispatches {
		if rec == nil || rec.TierKey != tierKey {
			continue
		}
		if rec.Acknowledged() {
			return false
		}
		if now.Sub(rec.SentAt.UTC()) > escalateAfter {
			return true
		}
	}
	return false
}
