package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/itchan-dev/itchat/shared/logger"
)

const readinessTimeout = 2 * time.Second

// Check is one named dependency of the readiness probe.
type Check struct {
	Name    string
	Checker HealthChecker
}

// Checks pings dependencies in order and stops at the first failure.
type Checks []Check

func (c Checks) Ping(ctx context.Context) error {
	for _, check := range c {
		if err := check.Checker.Ping(ctx); err != nil {
			return &unavailableError{name: check.Name, err: err}
		}
	}
	return nil
}

type unavailableError struct {
	name string
	err  error
}

func (e *unavailableError) Error() string { return e.name + " unavailable" }
func (e *unavailableError) Unwrap() error { return e.err }

// Health is a liveness probe endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready returns 503 naming the first dependency that failed to answer,
// e.g. "bus unavailable" when the broker connection is gone.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		logger.Log.Warn("readiness check failed", "error", err)
		msg := "dependencies unavailable"
		var unavailable *unavailableError
		if errors.As(err, &unavailable) {
			msg = unavailable.Error()
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(msg))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
