package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"mailout/internal/providers/resend"
)

type WebhookHandler interface {
	HandleResendEvent(ctx context.Context, ev resend.WebhookEvent, raw json.RawMessage) error
}

type Webhook struct {
	Events WebhookHandler
	// Secret enables signature checks when set.
	Secret string
}

func (w *Webhook) Register(mux *mux.Router) {
	mux.HandleFunc("/api/email/webhooks/resend", w.handleResend).Methods(http.MethodPost)
}

func (w *Webhook) handleResend(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
	if err != nil {
		writeError(rw, http.StatusBadRequest, ErrBodyTooLarge)
		return
	}
	if w.Secret != "" && !resend.VerifySignature(w.Secret, body, r.Header.Get(resend.SignatureHeader)) {
		writeError(rw, http.StatusUnauthorized, ErrInvalidSignature)
		return
	}

	var ev resend.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(rw, http.StatusBadRequest, ErrInvalidJSON)
		return
	}

	if err := w.Events.HandleResendEvent(r.Context(), ev, json.RawMessage(body)); err != nil {
		slog.Error("webhook handle resend event failed", "err", err, "type", ev.Type, "provider_msg_id", ev.MessageID())
		writeError(rw, http.StatusInternalServerError, ErrDependency)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]bool{"received": true})
}
