package web

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"roster-cli/internal/config"
	"roster-cli/internal/metrics"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/roster"
)

//go:embed templates/*.html static/*.css
var assetsFS embed.FS

const datastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"

type ServerConfig struct {
	Addr       string
	Collection string
	Display    config.DisplayConfig
	// ReadOnly rejects every mutating route with 403.
	ReadOnly bool
}

type Server struct {
	mu  sync.RWMutex
	cfg ServerConfig

	svc     *roster.Service
	log     *zap.Logger
	metrics *metrics.Metrics
	tmpl    *template.Template

	bc      *broadcaster
	unwatch func()
}

func (s *Server) cfgSnapshot() ServerConfig {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg
}

// SetDisplay swaps the display settings used for newly rendered pages.
func (s *Server) SetDisplay(d config.DisplayConfig) {
	s.mu.Lock()
	s.cfg.Display = d
	s.mu.Unlock()
	s.bc.broadcastAll()
}

func NewServer(svc *roster.Service, cfg ServerConfig, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Collection = strings.TrimSpace(cfg.Collection)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if svc == nil {
		return nil, errors.New("web: service is nil")
	}
	if cfg.Collection == "" {
		cfg.Collection = model.DefaultCollection
	}
	if cfg.Display.Columns < config.MinColumns || cfg.Display.Columns > config.MaxColumns {
		cfg.Display.Columns = config.DefaultColumns
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim":     strings.TrimSpace,
		"bio":      renderBioHTML,
		"initials": initials,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	srv := &Server{cfg: cfg, svc: svc, log: logger, metrics: m, tmpl: tmpl, bc: newBroadcaster()}
	srv.unwatch = svc.Watch(func(ev roster.Event) {
		srv.bc.hubFor(ev.Collection).broadcast()
	})
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Close detaches the server from service events and ends open streams.
func (s *Server) Close() {
	if s.unwatch != nil {
		s.unwatch()
	}
	s.bc.Stop()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /static/admin.css", s.handleAdminCSS)
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("POST /ajax", s.handleAjax)
	mux.HandleFunc("GET /api/members", s.handleMembersList)
	mux.HandleFunc("POST /api/members", s.handleMemberCreate)
	mux.HandleFunc("GET /api/members/{id}", s.handleMemberGet)
	mux.HandleFunc("PATCH /api/members/{id}", s.handleMemberUpdate)
	mux.HandleFunc("DELETE /api/members/{id}", s.handleMemberDelete)
	mux.HandleFunc("GET /export.csv", s.handleExport)
	mux.HandleFunc("POST /import", s.handleImport)
	return s.withRequestLog(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleAdminCSS(w http.ResponseWriter, r *http.Request) {
	b, err := assetsFS.ReadFile("static/admin.css")
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// collectionFor picks ?collection=, falling back to the configured one.
func (s *Server) collectionFor(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("collection")); c != "" {
		return c
	}
	return s.cfgSnapshot().Collection
}

// sortFor picks ?sort=, falling back to the configured display order.
func (s *Server) sortFor(r *http.Request) (order.SortMode, error) {
	if v := strings.TrimSpace(r.URL.Query().Get("sort")); v != "" {
		return order.ParseSortMode(v)
	}
	return order.ParseSortMode(s.cfgSnapshot().Display.SortOrder)
}

func (s *Server) columnsFor(r *http.Request) int {
	if v := strings.TrimSpace(r.URL.Query().Get("columns")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= config.MinColumns && n <= config.MaxColumns {
			return n
		}
	}
	return s.cfgSnapshot().Display.Columns
}

func (s *Server) writable(w http.ResponseWriter) bool {
	if s.cfgSnapshot().ReadOnly {
		writeError(w, http.StatusForbidden, errors.New("server is read-only"))
		return false
	}
	return true
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func initials(name string) string {
	var out []rune
	for _, f := range strings.Fields(name) {
		for _, r := range f {
			out = append(out, r)
			break
		}
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}
