package email

import (
	"context"

	"github.com/google/uuid"
)

// Sender adapts the email provider to the dispatch coordinator's
// channel contract.
type Sender struct {
	provider Provider
}

func NewSender(provider Provider) *Sender {
	return &Sender{provider: provider}
}

func (s *Sender) Send(ctx context.Context, recipient, templateID string, variables map[string]string) (string, error) {
	body, err := renderBody(templateID, variables)
	if err != nil {
		return "", err
	}
	if err := s.provider.Send(ctx, []string{recipient}, subjectFor(templateID, variables), body); err != nil {
		return "", err
	}
	return "email-" + uuid.NewString(), nil
}
