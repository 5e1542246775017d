package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/provider"
	"github.com/hearthtask/notify-engine/internal/template"
)

func gateway(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req provider.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhookProvider_Send(t *testing.T) {
	srv := gateway(t, http.StatusAccepted, `{"messageId":"wa-42","status":"accepted"}`)
	p := provider.NewWebhookProvider(domain.ChannelWhatsApp, srv.URL, time.Second)

	resp, err := p.Send(context.Background(), "+15550001111", template.Content{Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.MessageID != "wa-42" {
		t.Fatalf("expected messageId wa-42, got %q", resp.MessageID)
	}
}

func TestWebhookProvider_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   domain.ErrorClass
	}{
		{"server error is transient", http.StatusInternalServerError, domain.ErrorTransient},
		{"rate limit is transient", http.StatusTooManyRequests, domain.ErrorTransient},
		{"bad request is permanent", http.StatusBadRequest, domain.ErrorPermanent},
		{"not found is permanent", http.StatusNotFound, domain.ErrorPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gateway(t, tt.status, "")
			p := provider.NewWebhookProvider(domain.ChannelSMS, srv.URL, time.Second)

			_, err := p.Send(context.Background(), "+15550001111", template.Content{Body: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := provider.Classify(err); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestWebhookProvider_NetworkErrorIsTransient(t *testing.T) {
	// Closed server: connection refused.
	srv := gateway(t, http.StatusAccepted, "{}")
	url := srv.URL
	srv.Close()

	p := provider.NewWebhookProvider(domain.ChannelEmail, url, time.Second)
	_, err := p.Send(context.Background(), "a@example.com", template.Content{Body: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if provider.Classify(err) != domain.ErrorTransient {
		t.Fatalf("network error must be transient, got %v", err)
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		channel domain.Channel
		address string
		want    bool
	}{
		{domain.ChannelEmail, "a@example.com", true},
		{domain.ChannelEmail, "not-an-email", false},
		{domain.ChannelEmail, "@example.com", false},
		{domain.ChannelSMS, "+15550001111", true},
		{domain.ChannelSMS, "15550001111", false},
		{domain.ChannelSMS, "+1555abc", false},
		{domain.ChannelWhatsApp, "+49", false},
		{domain.ChannelPush, "device-token-123", true},
		{domain.ChannelPush, "short", false},
	}

	for _, tt := range tests {
		p := provider.NewWebhookProvider(tt.channel, "http://localhost", time.Second)
		if got := p.ValidateAddress(tt.address); got != tt.want {
			t.Errorf("%s %q: expected %v, got %v", tt.channel, tt.address, tt.want, got)
		}
	}
}
