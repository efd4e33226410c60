// Package webtui serves the terminal manager in a browser tab: each websocket
// connection runs `roster manage` in a pty and streams it to xterm.js.
package webtui

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

//go:embed templates/*.html static/*.css static/*.js
var assetsFS embed.FS

const (
	xtermVersion = "5.3.0"
	fitVersion   = "0.8.0"
)

type ServerConfig struct {
	Addr string
	// Exe is the program started per session; empty uses the running executable.
	Exe string
	// Args are passed to Exe, for example persistent flags followed by "manage".
	Args       []string
	Collection string
}

type Server struct {
	cfg  ServerConfig
	log  *zap.Logger
	tmpl *template.Template
}

func NewServer(cfg ServerConfig, logger *zap.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("webtui: missing addr")
	}
	if strings.TrimSpace(cfg.Exe) == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		cfg.Exe = exe
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, log: logger, tmpl: tmpl}, nil
}

func (s *Server) Addr() string {
	return strings.TrimSpace(s.cfg.Addr)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/terminal", http.StatusFound)
	})
	mux.HandleFunc("GET /terminal", s.handleTerminal)
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("GET /static/app.css", s.handleStatic("static/app.css", "text/css; charset=utf-8"))
	mux.HandleFunc("GET /static/app.js", s.handleStatic("static/app.js", "text/javascript; charset=utf-8"))

	return mux
}

func (s *Server) handleStatic(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := assetsFS.ReadFile(path)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(b)
	}
}

type terminalVM struct {
	Collection   string
	XtermVersion string
	FitVersion   string
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	col, err := s.sessionCollection(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vm := terminalVM{
		Collection:   col,
		XtermVersion: xtermVersion,
		FitVersion:   fitVersion,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "terminal.html", vm); err != nil {
		s.log.Error("render terminal page", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
