package domain

import (
	"context"
	"errors"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/reminder"
	"github.com/agencyops/renewd/internal/router"
	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

// SendRequest is one reminder tier to deliver through a routed chain.
type SendRequest struct {
	Asset      *assetdomain.RenewableAsset
	Tier       reminder.Tier
	Steps      []router.Step
	TemplateID string
	Variables  map[string]string
}

// SendResult classifies what the dispatch pass did for one tier.
type SendResult string

const (
	ResultSent       SendResult = "SENT"
	ResultFailed     SendResult = "FAILED"
	ResultSuppressed SendResult = "SUPPRESSED"
	// ResultWaiting means an earlier chain step is inside its
	// acknowledgment window; nothing was sent this pass.
	ResultWaiting SendResult = "WAITING"
	// ResultAlreadySent means the dedup check found a prior success.
	ResultAlreadySent SendResult = "ALREADY_SENT"
)

// BatchOutcome aggregates one batch of dispatches for reporting.
type BatchOutcome struct {
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

type ListDispatchRequest struct {
	PageToken string
	PageSize  int32
	AssetID   string
	Outcome   Outcome
}

type ListDispatchFilter struct {
	AssetID int64
	Outcome Outcome
}

type ListDispatchResponse struct {
	pagination.PageInfo
	Dispatches []DispatchRecord `json:"dispatches"`
}

type AcknowledgeRequest struct {
	ID string
}

type Service interface {
	// Dispatch drives one tier through its routed chain. Safe to
	// re-invoke after a crash or duplicate scheduling tick.
	Dispatch(context.Context, SendRequest) (SendResult, error)
	// DispatchBatch runs dispatches through the bounded worker pool.
	DispatchBatch(context.Context, []SendRequest) (BatchOutcome, error)
	List(context.Context, ListDispatchRequest) (ListDispatchResponse, error)
	Acknowledge(context.Context, AcknowledgeRequest) (DispatchRecord, error)
	// SentIndex returns the tier keys with a successful dispatch,
	// consumed by the reminder scheduler for due-ness decisions.
	SentIndex(ctx context.Context, assetIDs []snowflake.ID) (reminder.SentIndex, error)
	// ListForAssetSince returns the asset's dispatch facts in the
	// current cycle, consumed by the escalation engine.
	ListForAssetSince(ctx context.Context, assetID snowflake.ID, since time.Time) ([]*DispatchRecord, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("dispatch_not_found")
	ErrChannelUnavailable  = errors.New("channel_unavailable")
)
