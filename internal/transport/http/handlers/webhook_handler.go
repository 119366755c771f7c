package handlers

import (
	"crypto/subtle"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	httperrors "github.com/ivankudzin/tgdrop/internal/transport/http/errors"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateParser func(*http.Request) (tgbotapi.Update, error)

// WebhookHandler accepts updates pushed by Telegram. Dispatch must not block
// on the update being handled; Telegram retries slow deliveries.
type WebhookHandler struct {
	parse    UpdateParser
	dispatch func(tgbotapi.Update)
	secret   string
	logger   *zap.Logger
}

func NewWebhookHandler(parse UpdateParser, dispatch func(tgbotapi.Update), secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{parse: parse, dispatch: dispatch, secret: secret, logger: logger}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
				Code:    "UNAUTHORIZED",
				Message: "invalid webhook secret",
			})
			return
		}
	}

	update, err := h.parse(r)
	if err != nil {
		h.logger.Warn("reject webhook payload", zap.Error(err))
		httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
			Code:    "BAD_UPDATE",
			Message: "update payload is invalid",
		})
		return
	}

	h.dispatch(update)
	w.WriteHeader(http.StatusOK)
}
