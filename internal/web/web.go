package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"weekcal/internal/archive"
	"weekcal/internal/config"
	"weekcal/internal/isoweek"
	appLog "weekcal/internal/log"
	"weekcal/internal/weekview"
)

// viewCacheTTL bounds how stale a served week view can be after a re-fetch.
const viewCacheTTL = 30 * time.Second

// Server exposes week files as a read-only JSON API.
type Server struct {
	cfg *config.Config
	log *appLog.Logger
	mux *http.ServeMux
	now func() time.Time

	// In-memory cache for /api/weeks/{week} responses keyed by week and day.
	viewsMu sync.RWMutex
	views   map[string]viewCache
}

// viewCache holds a cached week view and its timestamp.
type viewCache struct {
	view      weekview.View
	updatedAt time.Time
}

// weekListEntry is one element of the /api/weeks response.
type weekListEntry struct {
	Week string `json:"week"`
	File string `json:"file"`
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, logger *appLog.Logger) *Server {
	if logger == nil {
		logger = appLog.Discard()
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		mux:   http.NewServeMux(),
		now:   time.Now,
		views: make(map[string]viewCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		s.log.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="weekcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
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
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/weeks", s.handleWeeks)
	s.mux.HandleFunc("GET /api/weeks/{week}", s.handleWeek)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWeeks lists the week files available, oldest first.
func (s *Server) handleWeeks(w http.ResponseWriter, _ *http.Request) {
	files, err := archive.ListWeekFiles(s.cfg.WeeksDir)
	if err != nil {
		s.log.Error("api weeks: list failed", err, "dir", s.cfg.WeeksDir)
		writeError(w, http.StatusInternalServerError, "failed to list weeks")
		return
	}
	entries := make([]weekListEntry, 0, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		entries = append(entries, weekListEntry{
			Week: strings.TrimSuffix(strings.TrimPrefix(base, "week-"), ".json"),
			File: base,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": entries})
}

// handleWeek returns the normalized day/week view of one week file.
//
// GET /api/weeks/2025-W02?day=2025-01-07
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	week, err := isoweek.ParseStrict(r.PathValue("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must look like 2025-W02")
		return
	}
	day := r.URL.Query().Get("day")
	if day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			writeError(w, http.StatusBadRequest, "day must look like 2025-01-07")
			return
		}
	}

	key := week.String() + "|" + day
	now := s.now()

	s.viewsMu.RLock()
	vc, ok := s.views[key]
	s.viewsMu.RUnlock()
	if ok && now.Sub(vc.updatedAt) < viewCacheTTL {
		writeJSON(w, http.StatusOK, vc.view)
		return
	}

	view, err := weekview.Load(s.cfg.WeeksDir, week, day, "")
	if err != nil {
		if errors.Is(err, weekview.ErrSourceNotFound) {
			writeError(w, http.StatusNotFound, "week not found")
			return
		}
		s.log.Error("api week: load failed", err, "week", week.String())
		writeError(w, http.StatusInternalServerError, "failed to load week")
		return
	}
	// Served views expose file names only.
	view.Meta.Source = filepath.Base(view.Meta.Source)

	s.viewsMu.Lock()
	s.views[key] = viewCache{view: view, updatedAt: now}
	s.viewsMu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
