package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roster-cli/internal/config"
	"roster-cli/internal/metrics"
	"roster-cli/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newWebCmd(app *App) *cobra.Command {
	var addr string
	var open bool
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the team page and its admin tools over HTTP",
		Long: strings.TrimSpace(`
Serve the team grid and its admin tools from a local HTTP server.

Pages update live (Datastar SSE) when members change, from this process or the
terminal manager attached to the same store. Display settings are re-read when the
config file changes.

Endpoints:
- GET  /                 team grid (admin tools unless --read-only)
- POST /ajax?action=...  move|reflow|collapse|reconcile|sort
- /api/members[/{id}]    JSON CRUD
- GET  /export.csv, POST /import
- GET  /metrics, GET /health
`),
		Example: strings.TrimSpace(`
  # Serve on the configured address (web.addr)
  roster web

  # Public read-only view on all interfaces
  roster web --addr :8080 --read-only --open=false
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = app.cfg.Web.Addr
			}

			m := metrics.New()
			svc, backend, done, err := app.openService(cmd.Context(), m)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			if c, ok := backend.(interface{ Collector() prometheus.Collector }); ok {
				if err := m.Register(c.Collector()); err != nil {
					app.log.Warn("store collector not registered", zap.Error(err))
				}
			}

			srv, err := web.NewServer(svc, web.ServerConfig{
				Addr:       listenAddr,
				Collection: app.cfg.Collection,
				Display:    app.cfg.Display,
				ReadOnly:   readOnly,
			}, app.log, m)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if path, err := app.configPath(); err == nil {
				stop, err := config.Watch(ctx, path, app.log, func(c *config.Config) {
					srv.SetDisplay(c.Display)
					app.log.Info("display settings reloaded", zap.String("path", path))
				})
				if err != nil {
					app.log.Warn("config watch disabled", zap.Error(err))
				} else {
					defer stop()
				}
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}

			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			opened := false
			openErr := ""
			if open {
				if err := openURL(url); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":       actualAddr,
					"url":        url,
					"collection": app.cfg.Collection,
					"readOnly":   readOnly,
					"opened":     opened,
					"openError":  openErr,
					"startedAt":  time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Roster web running at %s (collection=%s)\n", url, app.cfg.Collection)
			if openErr != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to open browser: %s\n", openErr)
			}

			hs := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer scancel()
				// SSE streams end when the server closes; Shutdown does not wait on hijacked conns.
				srv.Close()
				_ = hs.Shutdown(sctx)
			}()
			if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default: web.addr)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the page in your default browser")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Hide admin tools and reject changes")
	return cmd
}

func openURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Run()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Run()
	default:
		return exec.Command("xdg-open", url).Run()
	}
}
