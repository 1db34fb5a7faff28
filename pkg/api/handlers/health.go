package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
)

// StorePinger checks the persistence backend.
type StorePinger interface {
	Healthcheck(ctx context.Context) error
}

// storeCheckTimeout bounds the readiness probe's store ping.
const storeCheckTimeout = 2 * time.Second

// HealthHandler serves the liveness and readiness probes.
//
// Liveness only reports that the process answers HTTP. Readiness also
// requires the bot to be ready and the store to respond.
type HealthHandler struct {
	checks healthcheck.Handler
}

// NewHealthHandler creates the probes. ready reports whether startup has
// completed and shutdown has not begun; store may be nil.
func NewHealthHandler(ready func() bool, store StorePinger) *HealthHandler {
	checks := healthcheck.NewHandler()
	checks.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	checks.AddReadinessCheck("bot", func() error {
		if ready == nil || !ready() {
			return errors.New("bot is not ready")
		}
		return nil
	})
	if store != nil {
		checks.AddReadinessCheck("store", healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), storeCheckTimeout)
			defer cancel()
			return store.Healthcheck(ctx)
		}, storeCheckTimeout))
	}

	return &HealthHandler{checks: checks}
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.checks.LiveEndpoint(w, r)
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.checks.ReadyEndpoint(w, r)
}
