package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"roster-cli/internal/webtui"
)

func newWebTUICmd(app *App) *cobra.Command {
	var addr string
	var open bool

	cmd := &cobra.Command{
		Use:   "webtui",
		Short: "Serve the terminal manager in a browser tab",
		Long: strings.TrimSpace(`
Serve the interactive manager over a local HTTP server.

Each browser tab starts its own "roster manage" session in a pseudo-terminal and
streams it over a websocket to xterm.js. Sessions use the same config and store as
this command. The collection defaults to --collection; open
/terminal?collection=<name> to manage another one.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("webtui: missing --addr"))
			}

			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:       listenAddr,
				Args:       app.sessionArgs(),
				Collection: app.cfg.Collection,
			}, app.log)
			if err != nil {
				return writeErr(cmd, err)
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
					"opened":     opened,
					"openError":  openErr,
					"startedAt":  time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Roster webtui running at %s\n", url)

			hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = hs.Shutdown(sctx)
			}()
			if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8341", "Bind address (host:port or :port)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the page in your default browser")
	return cmd
}

// sessionArgs rebuilds the persistent flags so child sessions open the same store.
// The collection is left out; each session passes it as ROSTER_COLLECTION.
func (app *App) sessionArgs() []string {
	args := []string{}
	if p, err := app.configPath(); err == nil {
		args = append(args, "--config", p)
	}
	args = append(args, "--backend", app.cfg.Store.Backend)
	if p := strings.TrimSpace(app.cfg.Store.Path); p != "" {
		args = append(args, "--db", p)
	}
	return append(args, "manage")
}
