package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/service"
)

// StatsHandler serves aggregate delivery statistics.
type StatsHandler struct {
	svc    *service.EngineService
	logger *zap.Logger
}

func NewStatsHandler(svc *service.EngineService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

// Get handles GET /api/v1/stats?recipientId=&window=
//
// @Summary  Aggregate delivery statistics for a recipient
// @Tags     stats
// @Produce  json
// @Param    recipientId  query     string  true   "Recipient id"
// @Param    window       query     string  false  "Trailing window (Go duration, default 168h)"
// @Success  200          {object}  domain.DeliveryStats
// @Router   /api/v1/stats [get]
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipientID := r.URL.Query().Get("recipientId")
	if recipientID == "" {
		respondError(w, http.StatusBadRequest, "recipientId is required")
		return
	}

	window := 7 * 24 * time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	stats, err := h.svc.Stats(r.Context(), recipientID, window)
	if err != nil {
		h.logger.Error("stats query failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
