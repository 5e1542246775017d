package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/hearthtask/notify-engine/internal/api/middleware"
	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/service"
)

// MessageHandler handles one-off message endpoints.
type MessageHandler struct {
	svc    *service.EngineService
	logger *zap.Logger
}

func NewMessageHandler(svc *service.EngineService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/messages
//
// @Summary     Enqueue a notification message
// @Tags        messages
// @Accept      json
// @Produce     json
// @Param       body  body      domain.EnqueueRequest  true  "Send intent"
// @Success     201   {object}  domain.ScheduledMessage
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/messages [post]
func (h *MessageHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := h.svc.Enqueue(r.Context(), req)
	if err != nil {
		h.logger.Warn("enqueue failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// GetByID handles GET /api/v1/messages/{id}
//
// @Summary  Get a message with its attempt history
// @Tags     messages
// @Produce  json
// @Param    id   path      string  true  "Message UUID"
// @Success  200  {object}  map[string]any
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/messages/{id} [get]
func (h *MessageHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, attempts, err := h.svc.GetMessage(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":  m,
		"attempts": attempts,
	})
}

// Cancel handles DELETE /api/v1/messages/{id}
//
// @Summary  Cancel a pending message
// @Tags     messages
// @Param    id   path      string  true  "Message UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/messages/{id} [delete]
func (h *MessageHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
