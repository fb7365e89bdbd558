// Package sms delivers reminder texts through an HTTP SMS gateway.
package sms

import (
	"context"
	"fmt"

	"github.com/agencyops/renewd/internal/providers/gateway"
	"github.com/google/uuid"
)

type Sender struct {
	client *gateway.Client
	from   string
}

func NewSender(client *gateway.Client, from string) *Sender {
	return &Sender{client: client, from: from}
}

func (s *Sender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	ref, err := s.client.Post(ctx, "/v1/messages", map[string]string{
		"from": s.from,
		"to":   recipient,
		"body": messageFor(templateID, variables),
	})
	if err != nil {
		return "", err
	}
	if ref == "" {
		ref = "sms-" + uuid.NewString()
	}
	return ref, nil
}

func messageFor(templateID string, vars map[string]string) string {
	switch templateID {
	case "overdue_reminder", "renewal_escalation":
		return fmt.Sprintf("%s %s expired on %s. Renew now to restore service.",
			vars["asset_kind"], vars["asset_name"], vars["expires_at"])
	default:
		return fmt.Sprintf("%s %s expires in %s day(s), on %s.",
			vars["asset_kind"], vars["asset_name"], vars["days_remaining"], vars["expires_at"])
	}
}

// NoOpSender accepts everything without delivery, used when no gateway
// is configured.
type NoOpSender struct{}

func (s *NoOpSender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	return "sms-noop-" + uuid.NewString(), nil
}
