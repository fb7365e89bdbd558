// Package domain defines the bulk renewal coordinator contract.
package domain

import (
	"context"
	"errors"
	"time"
)

// Result classifies one item of a renewal batch.
type Result string

const (
	ResultRenewed  Result = "RENEWED"
	ResultRejected Result = "REJECTED"
)

// Rejection reasons reported per item. A rejection never aborts the
// rest of the batch.
const (
	ReasonInvalidID           = "invalid_id"
	ReasonNotFound            = "asset_not_found"
	ReasonInvalidExpiry       = "invalid_expiry"
	ReasonExpiryNotAfter      = "expiry_not_after_current"
	ReasonConcurrencyConflict = "concurrency_conflict"
	ReasonInternal            = "internal_error"
)

// RenewalItem is one asset renewal in a batch.
type RenewalItem struct {
	AssetID   string    `json:"asset_id"`
	ExpiresAt time.Time `json:"expires_at"`
	// AllowBackdate permits a new expiry at or before the current one,
	// used for correcting bad registry data.
	AllowBackdate bool `json:"allow_backdate,omitempty"`
}

type RenewBatchRequest struct {
	Items []RenewalItem `json:"items"`
}

// ItemResult is the per-item outcome. Reason is set only on rejection.
type ItemResult struct {
	AssetID string `json:"asset_id"`
	Result  Result `json:"result"`
	Reason  string `json:"reason,omitempty"`
}

type RenewBatchResponse struct {
	Results  []ItemResult `json:"results"`
	Renewed  int          `json:"renewed"`
	Rejected int          `json:"rejected"`
}

// TickTrigger requests an out-of-band scheduling tick. The coordinator
// fires it after a batch with at least one renewal so stale reminders
// clear immediately instead of waiting for the next interval.
type TickTrigger interface {
	TriggerNow()
}

type Service interface {
	// RenewBatch applies renewals with per-item isolation. One item's
	// rejection never blocks the others.
	RenewBatch(context.Context, RenewBatchRequest) (RenewBatchResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrEmptyBatch          = errors.New("empty_batch")
)
