package botapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	httperrors "github.com/ivankudzin/tgdrop/internal/transport/http/errors"
	"github.com/ivankudzin/tgdrop/internal/transport/http/handlers"
)

type Dependencies struct {
	Store   handlers.Pinger
	Webhook *handlers.WebhookHandler
	Logger  *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Logger)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	if deps.Webhook != nil {
		r.Post(WebhookPath, deps.Webhook.Handle)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "NOT_FOUND",
			Message: "route not found",
		})
	})
}

const WebhookPath = "/telegram/webhook"
