package provider

import (
	"context"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/template"
)

// SendRequest is the JSON body posted to an external channel provider.
type SendRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// SendResponse maps the provider's 202 Accepted response body. The
// provider message id is how delivery callbacks find their way back to
// the attempt log.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// Provider abstracts delivery through one external channel.
// Send errors are wrapped as TransientError or PermanentError; the worker
// uses the class to choose between backoff retry and channel fallback.
// Mocking this interface in tests gives full control over provider
// behaviour without real HTTP calls.
type Provider interface {
	Channel() domain.Channel
	Send(ctx context.Context, address string, content template.Content) (*SendResponse, error)
	ValidateAddress(address string) bool
}

// Registry is the set of configured providers keyed by channel.
type Registry map[domain.Channel]Provider
