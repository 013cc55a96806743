// Package server exposes the segment parser over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/markis/gh-chartstream/internal/chartspec"
	"github.com/markis/gh-chartstream/internal/render"
	"github.com/markis/gh-chartstream/internal/segment"
)

// Options configures a Server.
type Options struct {
	MaxBodyBytes    int64
	// InvalidSegments is the default for requests without ?invalid=.
	InvalidSegments bool
}

// Server is the HTTP API for parsing buffers.
type Server struct {
	router chi.Router
	log    *slog.Logger
	opts   Options
	html   *render.HTMLRenderer
}

func New(log *slog.Logger, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		log:  log,
		opts: opts,
		html: render.NewHTMLRenderer(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Post("/api/parse", s.handleParse)
	r.Post("/api/normalize", s.handleNormalize)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	invalid := s.opts.InvalidSegments
	if v := r.URL.Query().Get("invalid"); v != "" {
		invalid = v == "1" || v == "true"
	}
	opts := []segment.Option{segment.WithLogger(s.log.With(slog.String("component", "segment")))}
	if invalid {
		opts = append(opts, segment.WithInvalidSegments())
	}
	segs := segment.NewParser(opts...).Parse(string(body))

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.html.Render(w, segs); err != nil {
			s.log.Error("render html", "error", err)
		}
		return
	}

	if segs == nil {
		segs = []segment.Segment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segments": segs,
		"pending":  segment.Pending(segs),
	})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	spec, err := chartspec.Normalize(string(body))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, chartspec.ErrMalformed) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequestLogger logs incoming requests.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
