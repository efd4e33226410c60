package cli

import (
	"time"

	"github.com/spf13/cobra"

	"roster-cli/internal/order"
	"roster-cli/internal/publish"
)

func newPublishCmd(app *App) *cobra.Command {
	var to string
	var title string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the team as static Markdown pages (index.md + members/<id>.md)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()

			items, err := svc.List(cmd.Context(), app.cfg.Collection, order.SortManual)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteCollection(app.cfg.Collection, items, to, publish.WriteOptions{
				Overwrite: overwrite,
				Render:    publish.RenderOptions{Title: title, Now: time.Now()},
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().StringVar(&title, "title", "", "Index page title (default: Team: <collection>)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
