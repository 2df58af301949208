package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/logger/sl"
)

// Pinger is implemented by the storage and cache clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New reports 200 when every dependency answers a ping and 503 otherwise.
func New(log *slog.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				log.Warn("health check failed", slog.String("dependency", name), sl.Err(err))
				resp.Reply(w, r, http.StatusServiceUnavailable, resp.Error(resp.CodeServerError, name+" is unavailable"))
				return
			}
		}

		resp.Reply(w, r, http.StatusOK, resp.OK(http.StatusOK))
	}
}
