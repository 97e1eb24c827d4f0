package email

import (
	"context"

	"github.com/rs/zerolog/log"
)

// StubSender logs every message instead of delivering it, for local
// development and environments with no SMTP/Postmark credentials
// configured — mirrors internal/llm.StubClient's role for the LLM port.
type StubSender struct{}

func NewStubSender() *StubSender { return &StubSender{} }

func (s *StubSender) Send(ctx context.Context, email *Email) (string, error) {
	log.Info().Strs("to", email.To).Str("subject", email.Subject).Msg("stub email sender: message not delivered")
	return "stub-message-id", nil
}

func (s *StubSender) SendTemplate(ctx context.Context, templateID string, to []string, data map[string]interface{}) (string, error) {
	log.Info().Strs("to", to).Str("template", templateID).Msg("stub email sender: template message not delivered")
	return "stub-message-id", nil
}
