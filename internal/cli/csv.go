package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"roster-cli/internal/roster"
)

func newImportCmd(app *App) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import members from a CSV file",
		Long: strings.TrimSpace(`
Import members from a CSV file with the header:

  Name,Job Title,Rank,Image URL,Bio,Order

"Rank" is the seniority label; "Order" is the display position. Rows with an
empty Order are placed after the ranked ones, in file order. Rows with missing
columns are skipped and counted.

Modes:
- add        keep existing members and add the file's rows
- overwrite  replace the whole collection

The file is validated before anything is written; a bad file changes nothing.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := roster.ParseImportMode(mode)
			if err != nil {
				return writeErr(cmd, err)
			}
			var r io.Reader
			if args[0] == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				r = f
			}
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			sum, err := svc.Import(cmd.Context(), app.cfg.Collection, r, m)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": sum})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(roster.ImportAdd), "add|overwrite")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export members as CSV in manual order",
		Long: strings.TrimSpace(`
Export members as CSV in manual order.

Without --out the CSV goes to stdout. With --out the file is written and a short
summary is printed in the selected --format.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()

			path := strings.TrimSpace(out)
			if path == "" {
				_, err := svc.Export(cmd.Context(), app.cfg.Collection, cmd.OutOrStdout())
				if err != nil {
					return writeErr(cmd, err)
				}
				return nil
			}

			dir := filepath.Dir(path)
			tmp, err := os.CreateTemp(dir, ".roster-export-*.csv")
			if err != nil {
				return writeErr(cmd, err)
			}
			tmpName := tmp.Name()
			defer func() { _ = os.Remove(tmpName) }()

			n, err := svc.Export(cmd.Context(), app.cfg.Collection, tmp)
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := os.Rename(tmpName, path); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"collection": app.cfg.Collection,
					"path":       path,
					"members":    n,
				},
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}
