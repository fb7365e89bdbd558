// Package alerts builds the dashboard renewal summary. It is a pure
// projection over status resolution, so the banner counts and the modal
// lists can never disagree.
package alerts

import (
	"sort"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
	"github.com/agencyops/renewd/internal/status"
)

// Entry is one asset row in the expiring or expired list.
type Entry struct {
	AssetID       string               `json:"asset_id"`
	Name          string               `json:"name"`
	Kind          assetdomain.Kind     `json:"kind"`
	Status        status.RenewalStatus `json:"status"`
	DaysRemaining int                  `json:"days_remaining"`
	ExpiresAt     time.Time            `json:"expires_at"`
}

// Summary carries the true totals plus the capped lists. Counts always
// reflect the whole collection even when a list is truncated to the
// page cap.
type Summary struct {
	ExpiringSoonCount int     `json:"expiring_soon"`
	ExpiredCount      int     `json:"expired"`
	ExpiringList      []Entry `json:"expiring_list,omitempty"`
	ExpiredList       []Entry `json:"expired_list,omitempty"`
	Truncated         bool    `json:"truncated,omitempty"`
}

// Summarize resolves every asset's status and buckets the results. The
// lists are sorted by urgency, most overdue or soonest to expire first,
// and capped at policy.AlertPageCap entries each.
func Summarize(assets []*assetdomain.RenewableAsset, now time.Time, policy config.ReminderPolicy) Summary {
	var expiring, expired []Entry

	for _, asset := range assets {
		if asset == nil || !asset.Schedulable() {
			continue
		}
		res := status.Resolve(asset, now, policy)
		entry := Entry{
			AssetID:       asset.ID.String(),
			Name:          asset.Name,
			Kind:          asset.Kind,
			Status:        res.Status,
			DaysRemaining: res.DaysRemaining,
			ExpiresAt:     asset.ExpiresAt.UTC(),
		}
		switch res.Status {
		case status.ExpiringSoon:
			expiring = append(expiring, entry)
		case status.Expired:
			expired = append(expired, entry)
		}
	}

	sort.Slice(expiring, func(i, j int) bool {
		if expiring[i].DaysRemaining != expiring[j].DaysRemaining {
			return expiring[i].DaysRemaining < expiring[j].DaysRemaining
		}
		return expiring[i].AssetID < expiring[j].AssetID
	})
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].DaysRemaining != expired[j].DaysRemaining {
			return expired[i].DaysRemaining < expired[j].DaysRemaining
		}
		return expired[i].AssetID < expired[j].AssetID
	})

	summary := Summary{
		ExpiringSoonCount: len(expiring),
		ExpiredCount:      len(expired),
		ExpiringList:      expiring,
		ExpiredList:       expired,
	}

	pageCap := policy.AlertPageCap
	if pageCap > 0 {
		if len(summary.ExpiringList) > pageCap {
			summary.ExpiringList = summary.ExpiringList[:pageCap]
			summary.Truncated = true
		}
		if len(summary.ExpiredList) > pageCap {
			summary.ExpiredList = summary.ExpiredList[:pageCap]
			summary.Truncated = true
		}
	}

	return summary
}
