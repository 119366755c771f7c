package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	httperrors "github.com/ivankudzin/tgdrop/internal/transport/http/errors"
)

const readyTimeout = 2 * time.Second

type Pinger interface {
	Ping(context.Context) error
}

type HealthHandler struct {
	store  Pinger
	logger *zap.Logger
}

func NewHealthHandler(store Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{store: store, logger: logger}
}

func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the bundle store answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
			Code:    "STORE_UNAVAILABLE",
			Message: "bundle store is not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
			Code:    "STORE_UNAVAILABLE",
			Message: "bundle store is unavailable",
		})
		return
	}
	httperrors.Write(w, http.StatusOK, map[string]string{"status": "ready"})
}
