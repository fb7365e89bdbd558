// Package reminder computes which reminder tiers are currently due for an
// asset. Computation is pure: it reads prior dispatch facts and performs
// no writes, so repeated evaluation with the same inputs yields the same
// tiers.
package reminder

import (
	"fmt"
	"sort"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
)

// Tier is one reminder offset occurrence for one asset in one renewal
// cycle.
type Tier struct {
	AssetID    int64
	Key        string
	OffsetDays int
	PostExpiry bool
	FireAt     time.Time
}

// SentIndex records tier keys that already have a successful dispatch in
// the current cycle.
type SentIndex map[string]bool

// TierKey uniquely identifies a reminder tier occurrence. The cycle start
// is part of the key so a renewed asset gets fresh reminders next cycle.
func TierKey(asset *assetdomain.RenewableAsset, offsetDays int, postExpiry bool) string {
	side := "pre"
	if postExpiry {
		side = "post"
	}
	return fmt.Sprintf("%d:%s%d:%d", asset.ID, side, offsetDays, asset.CycleStart().Unix())
}

// DueTiers returns the tiers due for the asset at the given instant,
// sorted ascending by fire date so the most overdue tier is processed
// first. Auto-renew assets skip pre-expiry tiers but keep post-expiry
// tiers as the auto-renew-failure safety net.
func DueTiers(asset *assetdomain.RenewableAsset, now time.Time, policy config.ReminderPolicy, sent SentIndex) []Tier {
	if asset == nil || !asset.Schedulable() {
		return nil
	}

	now = now.UTC()
	expiresAt := asset.ExpiresAt.UTC()
	graceCutoff := now.Add(-time.Duration(policy.MissedTierGraceDays) * 24 * time.Hour)

	var due []Tier
	if !asset.AutoRenew {
		for _, offset := range policy.OffsetsDays {
			fireAt := expiresAt.Add(-time.Duration(offset) * 24 * time.Hour)
			if tier, ok := evaluate(asset, offset, false, fireAt, now, graceCutoff, sent); ok {
				due = append(due, tier)
			}
		}
	}
	for _, offset := range policy.PostExpiryOffsetsDays {
		fireAt := expiresAt.Add(time.Duration(offset) * 24 * time.Hour)
		if tier, ok := evaluate(asset, offset, true, fireAt, now, graceCutoff, sent); ok {
			due = append(due, tier)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].FireAt.Equal(due[j].FireAt) {
			return due[i].Key < due[j].Key
		}
		return due[i].FireAt.Before(due[j].FireAt)
	})
	return due
}

func evaluate(asset *assetdomain.RenewableAsset, offsetDays int, postExpiry bool, fireAt, now, graceCutoff time.Time, sent SentIndex) (Tier, bool) {
	if fireAt.After(now) {
		return Tier{}, false
	}
	if !fireAt.After(graceCutoff) {
		return Tier{}, false
	}
	key := TierKey(asset, offsetDays, postExpiry)
	if sent[key] {
		return Tier{}, false
	}
	return Tier{
		AssetID:    int64(asset.ID),
		Key:        key,
		OffsetDays: offsetDays,
		PostExpiry: postExpiry,
		FireAt:     fireAt,
	}, true
}
