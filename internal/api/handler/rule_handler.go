package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/service"
)

// RuleHandler handles recurring rule endpoints.
type RuleHandler struct {
	svc    *service.EngineService
	logger *zap.Logger
}

func NewRuleHandler(svc *service.EngineService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/rules
//
// @Summary  Create a recurring rule
// @Tags     rules
// @Accept   json
// @Produce  json
// @Param    body  body      domain.CreateRuleRequest  true  "Rule payload"
// @Success  201   {object}  domain.RecurringRule
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/rules [post]
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rule, err := h.svc.CreateRule(r.Context(), req)
	if err != nil {
		h.logger.Warn("create rule failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// GetByID handles GET /api/v1/rules/{id}
func (h *RuleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := h.svc.GetRule(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// SetEnabled handles PATCH /api/v1/rules/{id}
//
// @Summary  Pause or resume a recurring rule
// @Tags     rules
// @Accept   json
// @Produce  json
// @Param    id    path      string            true  "Rule UUID"
// @Param    body  body      map[string]bool   true  "{\"enabled\": false}"
// @Success  200   {object}  domain.RecurringRule
// @Failure  404   {object}  map[string]string
// @Router   /api/v1/rules/{id} [patch]
func (h *RuleHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		respondError(w, http.StatusBadRequest, "body must contain a boolean \"enabled\" field")
		return
	}

	rule, err := h.svc.SetRuleEnabled(r.Context(), id, *body.Enabled)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}
