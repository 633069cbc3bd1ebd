package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"mailout/internal/domain"
	"mailout/internal/thumbnail"
)

const (
	ErrInvalidJSON      = "invalid json"
	ErrInvalidURL       = "Invalid URL"
	ErrMissingEmail     = "missing email"
	ErrMissingThumbnail = "thumbnailUrl is required"
	ErrDependency       = "dependency error"
	ErrInternal         = "internal error"
	ErrInvalidSignature = "invalid signature"
	ErrBodyTooLarge     = "request body too large"
	ErrThumbnailFailed  = "thumbnail generation failed"
)

const maxBodyBytes = 5 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors onto HTTP statuses. Messages of client
// errors are safe to echo; server errors are replaced by a generic text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrInvalidRecipientType),
		errors.Is(err, domain.ErrNoEligibleRecipients),
		errors.Is(err, domain.ErrTooManyRecipients),
		errors.Is(err, thumbnail.ErrDimensions),
		errors.Is(err, thumbnail.ErrSourceURL),
		errors.Is(err, thumbnail.ErrPrivateSource),
		errors.Is(err, thumbnail.ErrSourceTooLarge):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrCampaignNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrCampaignBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, domain.ErrDependency):
		return http.StatusBadGateway, ErrDependency
	}
	return http.StatusInternalServerError, ErrInternal
}
