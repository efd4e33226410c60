package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roster-cli/internal/config"
	"roster-cli/internal/format"
	"roster-cli/internal/logging"
	"roster-cli/internal/metrics"
	"roster-cli/internal/roster"
	"roster-cli/internal/store"
	"roster-cli/internal/tui"
)

type App struct {
	ConfigPath string
	Backend    string
	DB         string
	Collection string
	Format     string
	PrettyJSON bool
	Verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "roster",
		Short:        "Team member roster: ordering, import/export, terminal manager and web admin",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive manager
  roster

  # Scriptable commands
  roster members list --format text
  roster members move member-01j... up

  # Spreadsheet round trip
  roster export --out team.csv
  roster import team.csv --mode overwrite
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive manager.
			if len(args) == 0 {
				return runManage(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("ROSTER_CONFIG", ""), "Config file (default: $XDG_CONFIG_HOME/roster/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.Backend, "backend", "", "Store backend (sqlite|pebble|memory); overrides config")
	cmd.PersistentFlags().StringVar(&app.DB, "db", "", "SQLite file or Pebble directory; overrides config")
	cmd.PersistentFlags().StringVar(&app.Collection, "collection", "", "Member collection; overrides config")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("ROSTER_FORMAT", "json"), "Output format (json|yaml|text)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Debug logging on stderr")

	cmd.AddCommand(newMembersCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newSettingsCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newWebCmd(app))
	cmd.AddCommand(newWebTUICmd(app))
	cmd.AddCommand(newManageCmd(app))

	return cmd
}

// init loads the config, applies flag overrides and builds the logger.
func (app *App) init() error {
	path, err := app.configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(app.Backend); v != "" {
		cfg.Store.Backend = v
	}
	if v := strings.TrimSpace(app.DB); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(app.Collection); v != "" {
		cfg.Collection = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
		Verbose:  app.Verbose,
	})
	if err != nil {
		return err
	}
	app.cfg = cfg
	app.log = log
	return nil
}

func (app *App) configPath() (string, error) {
	if p := strings.TrimSpace(app.ConfigPath); p != "" {
		return p, nil
	}
	return config.Path()
}

// openService opens the configured backend. done must be called when finished.
func (app *App) openService(ctx context.Context, m *metrics.Metrics) (svc *roster.Service, b store.Backend, done func(), err error) {
	opts, err := app.cfg.StoreOptions()
	if err != nil {
		return nil, nil, nil, err
	}
	b, err = store.Open(ctx, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	app.log.Debug("store opened", zap.String("backend", string(opts.Kind)), zap.String("path", opts.Path))
	svc = roster.New(b, roster.Options{Logger: app.log, Metrics: m})
	return svc, b, func() {
		if err := b.Close(); err != nil {
			app.log.Warn("store close failed", zap.Error(err))
		}
		_ = app.log.Sync()
	}, nil
}

func runManage(cmd *cobra.Command, app *App) error {
	svc, _, closeStore, err := app.openService(cmd.Context(), nil)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer closeStore()
	stateDir, err := store.DataDir()
	if err != nil {
		app.log.Warn("tui state disabled", zap.Error(err))
		stateDir = ""
	}
	return tui.Run(cmd.Context(), svc, tui.Options{
		Collection: app.cfg.Collection,
		Display:    app.cfg.Display,
		Logger:     app.log,
		StateDir:   stateDir,
	})
}

func newManageCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "manage",
		Short: "Open the interactive terminal manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManage(cmd, app)
		},
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
