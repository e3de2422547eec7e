package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
)

// Pinger 外部依賴的健康檢查
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 任何依賴失敗回傳 503
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		response.ErrorJSON(w, http.StatusServiceUnavailable, "unhealthy", status)
		return
	}
	response.SuccessJSON(w, status, "ok")
}
