package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"mailout/internal/domain"
	"mailout/internal/service"
	"mailout/internal/tracking"
)

type CampaignSender interface {
	Send(ctx context.Context, req domain.SendCampaignRequest) (domain.SendCampaignResponse, error)
	Status() service.Status
}

type Tracker interface {
	RecordOpen(ctx context.Context, campaignID, email string) error
	RecordClick(ctx context.Context, campaignID, email, linkType, target string) error
	Unsubscribe(ctx context.Context, email string) (string, error)
}

type API struct {
	Campaigns CampaignSender
	Tracking  Tracker
}

func (a *API) Register(mux *mux.Router) {
	mux.HandleFunc("/api/email/send-campaign", a.handleSendCampaign).Methods(http.MethodPost)
	mux.HandleFunc("/api/email/send-campaign", a.handleSendStatus).Methods(http.MethodGet)
	mux.HandleFunc(tracking.OpenPath, a.handleOpen).Methods(http.MethodGet)
	mux.HandleFunc(tracking.ClickPath, a.handleClick).Methods(http.MethodGet)
	mux.HandleFunc(tracking.UnsubscribePath, a.handleUnsubscribe).Methods(http.MethodGet)
}

func (a *API) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	var req domain.SendCampaignRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}

	resp, err := a.Campaigns.Send(r.Context(), req)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("send campaign failed",
				"err", err,
				"campaign_id", req.CampaignID,
				"template_id", req.TemplateID,
				"recipient_type", req.RecipientType,
			)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSendStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Campaigns.Status())
}

// transparentGIF is a 1x1 transparent GIF.
var transparentGIF, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// handleOpen always answers with the pixel so broken tracking never shows
// as a broken image.
func (a *API) handleOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if c, e := q.Get("c"), q.Get("e"); c != "" && e != "" {
		if err := a.Tracking.RecordOpen(r.Context(), c, e); err != nil {
			slog.Error("record open failed", "err", err, "campaign_id", c)
		}
	}
	noCache(w)
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", fmt.Sprint(len(transparentGIF)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)
}

func (a *API) handleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, e, target := q.Get("c"), q.Get("e"), q.Get("url")
	if target != "" && !redirectable(target) {
		writeError(w, http.StatusBadRequest, ErrInvalidURL)
		return
	}

	if c != "" && e != "" {
		if err := a.Tracking.RecordClick(r.Context(), c, e, q.Get("type"), target); err != nil {
			slog.Error("record click failed", "err", err, "campaign_id", c)
		}
	}

	if target == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Click tracked"})
		return
	}
	noCache(w)
	http.Redirect(w, r, target, http.StatusFound)
}

func redirectable(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

const unsubscribePage = `<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><title>Unsubscribed</title></head>
<body style="font-family:Arial, sans-serif;text-align:center;padding:60px 20px;color:#333;">
<h1 style="font-size:24px;">You have been unsubscribed</h1>
<p>%s will no longer receive campaign emails from us.</p>
</body></html>
`

func (a *API) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email, err := a.Tracking.Unsubscribe(r.Context(), r.URL.Query().Get("e"))
	if errors.Is(err, service.ErrMissingEmail) {
		http.Error(w, ErrMissingEmail, http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("unsubscribe failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, unsubscribePage, html.EscapeString(email))
}
