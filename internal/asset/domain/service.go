package domain

import (
	"context"
	"errors"
	"time"

	"github.com/agencyops/renewd/pkg/db/pagination"
)

type CreateAssetRequest struct {
	Kind      Kind
	Name      string
	ClientID  string
	OwnerID   string
	ExpiresAt *time.Time
	AutoRenew bool
}

type ListAssetRequest struct {
	PageToken string
	PageSize  int32
	Kind      Kind
	ClientID  string
}

type ListAssetFilter struct {
	Kind     Kind
	ClientID int64
}

type ListAssetResponse struct {
	pagination.PageInfo
	Assets []RenewableAsset `json:"assets"`
}

type GetAssetRequest struct {
	ID string
}

// DataQualityEntry describes an asset excluded from scheduling.
type DataQualityEntry struct {
	Asset  RenewableAsset `json:"asset"`
	Reason string         `json:"reason"`
}

type DataQualityResponse struct {
	Excluded []DataQualityEntry `json:"excluded"`
}

type Service interface {
	Create(context.Context, CreateAssetRequest) (RenewableAsset, error)
	List(context.Context, ListAssetRequest) (ListAssetResponse, error)
	GetByID(context.Context, GetAssetRequest) (RenewableAsset, error)
	DataQuality(context.Context) (DataQualityResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidExpiry       = errors.New("invalid_expiry")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("asset_not_found")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)
