package handler

import (
	"net/http"

	"github.com/hearthtask/notify-engine/internal/queue"
)

// MetricsHandler serves a JSON snapshot of the dispatch queue for quick
// operational checks. Prometheus counters and histograms live on the
// separate /metrics scrape endpoint.
type MetricsHandler struct {
	q *queue.PriorityQueue
}

func NewMetricsHandler(q *queue.PriorityQueue) *MetricsHandler {
	return &MetricsHandler{q: q}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Dispatch queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	high, normal, low := h.q.Depths()
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]int{
			"high":    high,
			"normal":  normal,
			"low":     low,
			"backlog": high + normal + low,
		},
	})
}
