package domain

import (
	"context"
	"errors"
	"time"

	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/internal/status"
	"github.com/bwmarrin/snowflake"
)

type ListEscalationRequest struct {
	// IncludeResolved widens the listing beyond open escalations.
	IncludeResolved bool
}

type ListEscalationResponse struct {
	Escalations []EscalationRecord `json:"escalations"`
}

type ResolveEscalationRequest struct {
	ID string
}

// EvaluateRequest carries one asset's state into the escalation decision.
type EvaluateRequest struct {
	Asset           *assetdomain.RenewableAsset
	Status          status.RenewalStatus
	Now             time.Time
	CycleDispatches []*dispatchdomain.DispatchRecord
}

// EvaluateResult reports the applied transition. Record is set when the
// caller must deliver an escalation notification (Raise or Renotify).
type EvaluateResult struct {
	Action Action
	Record *EscalationRecord
}

type Service interface {
	List(context.Context, ListEscalationRequest) (ListEscalationResponse, error)
	// Resolve closes an escalation by operator action.
	Resolve(context.Context, ResolveEscalationRequest) (EscalationRecord, error)
	// Evaluate applies the escalation state machine for one asset.
	Evaluate(context.Context, EvaluateRequest) (EvaluateResult, error)
	// ResolveForAsset closes any open escalation after a renewal.
	ResolveForAsset(ctx context.Context, assetID snowflake.ID) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("escalation_not_found")
	ErrAlreadyResolved     = errors.New("escalation_already_resolved")
)
