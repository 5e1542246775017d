package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/tracker"
)

// WebhookHandler receives delivery callbacks from channel providers and
// converts them into tracker events. The handler only validates and
// queues; folding into the attempt log happens asynchronously so a burst
// of callbacks cannot slow provider-facing HTTP responses.
type WebhookHandler struct {
	trk    *tracker.Tracker
	logger *zap.Logger
}

func NewWebhookHandler(trk *tracker.Tracker, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{trk: trk, logger: logger}
}

type deliveryCallback struct {
	ProviderMessageID string `json:"providerMessageId"`
	Event             string `json:"event"`
	ErrorCode         string `json:"errorCode,omitempty"`
}

// Deliver handles POST /webhooks/delivery
//
// @Summary  Inbound provider delivery callback
// @Tags     webhooks
// @Accept   json
// @Success  202
// @Failure  400  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /webhooks/delivery [post]
func (h *WebhookHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	var cb deliveryCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if cb.ProviderMessageID == "" {
		respondError(w, http.StatusBadRequest, "providerMessageId is required")
		return
	}
	outcome := domain.Outcome(cb.Event)
	if !outcome.IsValid() {
		respondError(w, http.StatusBadRequest, "unknown event")
		return
	}

	err := h.trk.Submit(tracker.Event{
		ProviderMsgID: cb.ProviderMessageID,
		Outcome:       outcome,
		ErrorCode:     cb.ErrorCode,
	})
	if err != nil {
		// Buffer full: tell the provider to redeliver later.
		h.logger.Warn("tracker event buffer full")
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
