package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check with a shared timeout. Any failure turns the
// answer into 503 so load balancers stop routing to the instance.
func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report := healthReport{Status: "ok"}
		status := http.StatusOK
		for _, name := range names {
			if report.Checks == nil {
				report.Checks = make(map[string]string, len(names))
			}
			if err := checks[name](ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				report.Checks[name] = "unavailable"
				report.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[name] = "ok"
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			return
		}
		WriteJSON(w, status, report)
	}
}
