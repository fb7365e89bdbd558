// Package status derives a renewal lifecycle status from raw date fields.
// Resolution is pure: the status is recomputed on every read and never
// stored.
package status

import (
	"math"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/config"
)

// RenewalStatus is the derived lifecycle state of a renewable asset.
type RenewalStatus string

const (
	Active          RenewalStatus = "ACTIVE"
	ExpiringSoon    RenewalStatus = "EXPIRING_SOON"
	Expired         RenewalStatus = "EXPIRED"
	RecentlyRenewed RenewalStatus = "RECENTLY_RENEWED"
)

// Resolution pairs the derived status with the signed days-remaining count.
// DaysRemaining is negative once the asset is overdue.
type Resolution struct {
	Status        RenewalStatus
	DaysRemaining int
}

// Resolve maps an asset's expiry and last-renewal dates to a lifecycle
// status at the given instant. Assets without a usable expiry must be
// filtered out by the caller before resolution.
func Resolve(asset *assetdomain.RenewableAsset, now time.Time, policy config.ReminderPolicy) Resolution {
	now = now.UTC()
	expiresAt := asset.ExpiresAt.UTC()

	daysRemaining := daysUntil(now, expiresAt)

	if asset.LastRenewalAt != nil {
		sinceRenewal := now.Sub(asset.LastRenewalAt.UTC())
		grace := time.Duration(policy.RecentlyRenewedGraceDays) * 24 * time.Hour
		if sinceRenewal >= 0 && sinceRenewal <= grace {
			return Resolution{Status: RecentlyRenewed, DaysRemaining: daysRemaining}
		}
	}

	switch {
	case daysRemaining < 0:
		return Resolution{Status: Expired, DaysRemaining: daysRemaining}
	case daysRemaining <= policy.SoonThresholdDays:
		return Resolution{Status: ExpiringSoon, DaysRemaining: daysRemaining}
	default:
		return Resolution{Status: Active, DaysRemaining: daysRemaining}
	}
}

// daysUntil floors the signed day distance so partial overdue days count
// as overdue.
func daysUntil(now, expiresAt time.Time) int {
	hours := expiresAt.Sub(now).Hours()
	return int(math.Floor(hours / 24))
}
