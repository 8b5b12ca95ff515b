package httpserver

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	DB      pinger
	Dialect string
}

type healthResponse struct {
	Status  string `json:"status"`
	DB      string `json:"db"`
	Dialect string `json:"dialect"`
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "service_unhealthy", "database unreachable")
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		DB:      "ok",
		Dialect: h.Dialect,
	})
}
