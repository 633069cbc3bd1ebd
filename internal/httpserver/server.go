package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mailout/internal/observability"
)

type Server struct {
	Mux *mux.Router
}

func New() *Server {
	return &Server{Mux: mux.NewRouter()}
}

// Handler wraps the router with recovery, metrics and request logging.
// Metrics sits inside the router so route templates are available.
func (s *Server) Handler() http.Handler {
	s.Mux.Use(Metrics(observability.APIRequests))
	return Logging(Recovery(s.Mux))
}

// HTTPServer returns a server with timeouts sized for a full campaign send.
func HTTPServer(addr string, h http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}
