package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"medcal/internal/config"
	"medcal/internal/export"
	"medcal/internal/ics"
	appLog "medcal/internal/log"
)

// Server publishes exported calendars from a directory store over HTTP so
// that webcal:// subscriptions to a "dir" store resolve.
//
// Routes:
//   - /health
//   - /api/latest      last published export (from the export cache)
//   - /<bucket>/...    files under the store directory
type Server struct {
	cfg   *config.Config
	cache export.CacheStore
	mux   *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cache export.CacheStore) *Server {
	s := &Server{
		cfg:   cfg,
		cache: cache,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "listen", "http://"+s.cfg.Listen, "root", s.cfg.Store.Dir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("http server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/latest", s.handleLatest)

	// Everything else is a stored object.
	s.mux.Handle("/", s.objectServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type latestResponse struct {
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

// handleLatest reports the last published export, or 404 if there is none.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "no export published yet")
		return
	}
	entry, ok := s.cache.Get()
	if !ok {
		writeError(w, http.StatusNotFound, "no export published yet")
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{
		URL:       entry.Location,
		FileName:  entry.FileName,
		Hash:      entry.Hash.String(),
		UpdatedAt: entry.UpdatedAt,
	})
}

// objectServer serves files under the store directory. Calendars get the
// iCalendar media type and are never cached by clients, so subscribers
// always see the latest upload.
func (s *Server) objectServer() http.Handler {
	fileServer := http.FileServer(http.Dir(s.cfg.Store.Dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path

		// /api/* never falls through to the file tree.
		if p == "/api" || strings.HasPrefix(p, "/api/") {
			http.NotFound(w, r)
			return
		}
		// Directory listings are not exposed.
		if p == "/" || strings.HasSuffix(p, "/") {
			http.NotFound(w, r)
			return
		}

		if strings.EqualFold(path.Ext(p), ".ics") {
			w.Header().Set("Content-Type", ics.ContentType)
			w.Header().Set("Cache-Control", "no-cache")
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
