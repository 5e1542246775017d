package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/service"
)

// PreferenceHandler manages the per-recipient channel preferences the
// router consumes.
type PreferenceHandler struct {
	svc    *service.EngineService
	logger *zap.Logger
}

func NewPreferenceHandler(svc *service.EngineService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{svc: svc, logger: logger}
}

// Put handles PUT /api/v1/preferences/{recipientId}
func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	var pref domain.ChannelPreference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	pref.RecipientID = chi.URLParam(r, "recipientId")

	if err := h.svc.UpsertPreference(r.Context(), &pref); err != nil {
		h.logger.Warn("upsert preference failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pref)
}

// Get handles GET /api/v1/preferences/{recipientId}
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientId")
	pref, err := h.svc.GetPreference(r.Context(), recipientID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pref)
}
