package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Response struct {
	Status string `json:"status"`
}

// New serves GET /healthz; it fails with 503 while the database is
// unreachable.
func New(log *zap.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, Response{Status: "unavailable"})
			return
		}
		render.JSON(w, r, Response{Status: "ok"})
	}
}
