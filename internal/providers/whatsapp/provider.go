// Package whatsapp delivers reminders through a WhatsApp Business
// gateway. The gateway expects pre-approved template names, so the
// message is sent as a template reference plus its parameters.
package whatsapp

import (
	"context"

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

type templateMessage struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Template   string            `json:"template"`
	Parameters map[string]string `json:"parameters"`
}

func (s *Sender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	ref, err := s.client.Post(ctx, "/v1/template-messages", templateMessage{
		From:       s.from,
		To:         recipient,
		Template:   templateID,
		Parameters: variables,
	})
	if err != nil {
		return "", err
	}
	if ref == "" {
		ref = "wa-" + uuid.NewString()
	}
	return ref, nil
}

type NoOpSender struct{}

func (s *NoOpSender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	return "wa-noop-" + uuid.NewString(), nil
}
