package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/template"
)

// WebhookProvider delivers messages by POSTing to an HTTP gateway at
// {baseURL}/{channel}. The base URL is injected from config so tests can
// point every channel at a local mock.
type WebhookProvider struct {
	channel    domain.Channel
	url        string
	httpClient *http.Client
}

func NewWebhookProvider(channel domain.Channel, baseURL string, timeout time.Duration) *WebhookProvider {
	return &WebhookProvider{
		channel: channel,
		url:     strings.TrimRight(baseURL, "/") + "/" + string(channel),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewRegistry builds a webhook provider for every channel against one gateway.
func NewRegistry(baseURL string, timeout time.Duration) Registry {
	channels := []domain.Channel{
		domain.ChannelWhatsApp, domain.ChannelSMS, domain.ChannelEmail, domain.ChannelPush,
	}
	reg := make(Registry, len(channels))
	for _, ch := range channels {
		reg[ch] = NewWebhookProvider(ch, baseURL, timeout)
	}
	return reg
}

func (p *WebhookProvider) Channel() domain.Channel { return p.channel }

// Send posts the rendered content and expects a 202 Accepted with a JSON
// body containing messageId. Status codes are classified: 5xx and 429 are
// transient (the provider may recover), other 4xx are permanent (this
// request will never be accepted). Network errors and timeouts are
// transient — the hard client timeout turns a hung provider into a
// retryable failure instead of a stuck worker.
func (p *WebhookProvider) Send(ctx context.Context, address string, content template.Content) (*SendResponse, error) {
	body, err := json.Marshal(SendRequest{
		To:      address,
		Channel: string(p.channel),
		Subject: content.Subject,
		Body:    content.Body,
	})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// fallthrough to decoding below
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("provider status %d", resp.StatusCode))
	default:
		return nil, Permanent(fmt.Errorf("provider status %d", resp.StatusCode))
	}

	var sendResp SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return nil, Transient(fmt.Errorf("decode response: %w", err))
	}
	return &sendResp, nil
}

// ValidateAddress is a cheap shape check so obviously broken addresses
// fail over to the next channel without spending a provider call.
func (p *WebhookProvider) ValidateAddress(address string) bool {
	switch p.channel {
	case domain.ChannelEmail:
		at := strings.Index(address, "@")
		return at > 0 && at < len(address)-1
	case domain.ChannelSMS, domain.ChannelWhatsApp:
		if !strings.HasPrefix(address, "+") || len(address) < 8 {
			return false
		}
		for _, r := range address[1:] {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	default:
		return len(address) >= 8
	}
}

// compile-time check that WebhookProvider implements Provider
var _ Provider = (*WebhookProvider)(nil)
