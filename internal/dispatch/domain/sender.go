package domain

import (
	"context"

	clientdomain "github.com/agencyops/renewd/internal/client/domain"
)

// Sender hands one message to a channel transport. Acceptance by the
// provider counts as sent; asynchronous delivery confirmation is out of
// scope.
type Sender interface {
	Send(ctx context.Context, recipient, templateID string, variables map[string]string) (providerRef string, err error)
}

// SenderRegistry maps channels to their transports.
type SenderRegistry map[clientdomain.Channel]Sender
