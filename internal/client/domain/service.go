package domain

import (
	"context"
	"errors"

	"github.com/agencyops/renewd/pkg/db/pagination"
)

type CreateClientRequest struct {
	Name  string
	Email string
	Phone string
}

type ListClientRequest struct {
	PageToken string
	PageSize  int32
	Name      string
}

type ListClientFilter struct {
	Name string
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type GetClientRequest struct {
	ID string
}

// PreferenceStep is one resolved step in a client's fallback chain.
type PreferenceStep struct {
	Channel    Channel `json:"channel"`
	Recipient  string  `json:"recipient"`
	DelayHours int     `json:"delay_hours"`
}

// ResolvedPreferences is the channel chain the router consumes. Defaulted
// reports whether the chain came from the documented default rather than
// stored preferences.
type ResolvedPreferences struct {
	ClientID  string           `json:"client_id"`
	OptOut    bool             `json:"opt_out"`
	Steps     []PreferenceStep `json:"steps"`
	Defaulted bool             `json:"defaulted"`
}

type GetPreferencesRequest struct {
	ClientID string
}

type PreferenceInput struct {
	Channel    Channel `json:"channel"`
	DelayHours int     `json:"delay_hours"`
	Enabled    bool    `json:"enabled"`
}

type UpdatePreferencesRequest struct {
	ClientID string
	OptOut   *bool
	Steps    []PreferenceInput
}

type Service interface {
	Create(context.Context, CreateClientRequest) (Client, error)
	List(context.Context, ListClientRequest) (ListClientResponse, error)
	GetByID(context.Context, GetClientRequest) (Client, error)
	GetPreferences(context.Context, GetPreferencesRequest) (ResolvedPreferences, error)
	UpdatePreferences(context.Context, UpdatePreferencesRequest) (ResolvedPreferences, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidChannel      = errors.New("invalid_channel")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("client_not_found")
)
