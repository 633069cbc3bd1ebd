package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type ThumbnailGenerator interface {
	Generate(ctx context.Context, sourceURL string, w, h int) ([]byte, error)
}

type Thumbnails struct {
	Generator ThumbnailGenerator
}

func (t *Thumbnails) Register(mux *mux.Router) {
	mux.HandleFunc("/api/video/generate-thumbnail", t.handleGenerate).Methods(http.MethodGet, http.MethodPost)
}

type thumbnailRequest struct {
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type thumbnailFailure struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Fallback bool   `json:"fallback"`
}

func (t *Thumbnails) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req thumbnailRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, thumbnailFailure{Error: ErrInvalidJSON})
			return
		}
	} else {
		q := r.URL.Query()
		req.ThumbnailURL = q.Get("url")
		req.Width, _ = strconv.Atoi(q.Get("w"))
		req.Height, _ = strconv.Atoi(q.Get("h"))
	}
	if req.ThumbnailURL == "" {
		writeJSON(w, http.StatusBadRequest, thumbnailFailure{Error: ErrMissingThumbnail})
		return
	}

	png, err := t.Generator.Generate(r.Context(), req.ThumbnailURL, req.Width, req.Height)
	if err != nil {
		status, msg := statusFor(err)
		if status != http.StatusBadRequest {
			status, msg = http.StatusInternalServerError, ErrThumbnailFailed
			slog.Warn("thumbnail generation failed", "err", err, "source", req.ThumbnailURL)
		}
		writeJSON(w, status, thumbnailFailure{Error: msg, Fallback: true})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
