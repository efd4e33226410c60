package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/roster"
)

func newMembersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "members",
		Aliases: []string{"member", "m"},
		Short:   "List, edit and reorder team members",
	}
	cmd.AddCommand(newMembersListCmd(app))
	cmd.AddCommand(newMembersShowCmd(app))
	cmd.AddCommand(newMembersAddCmd(app))
	cmd.AddCommand(newMembersEditCmd(app))
	cmd.AddCommand(newMembersDeleteCmd(app))
	cmd.AddCommand(newMembersMoveCmd(app))
	cmd.AddCommand(newMembersReflowCmd(app))
	cmd.AddCommand(newMembersCollapseCmd(app))
	cmd.AddCommand(newMembersReconcileCmd(app))
	return cmd
}

func newMembersListCmd(app *App) *cobra.Command {
	var sort string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sort == "" {
				sort = app.cfg.Display.SortOrder
			}
			mode, err := order.ParseSortMode(sort)
			if err != nil {
				return writeErr(cmd, err)
			}
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			items, err := svc.List(cmd.Context(), app.cfg.Collection, mode)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": items})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", "", "manual|name|job_title|rank|date_asc|date_desc (default: display.sort_order)")
	return cmd
}

func newMembersShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <member-id>",
		Short: "Show one member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			m, err := svc.Get(cmd.Context(), app.cfg.Collection, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": m})
		},
	}
}

// profileFlags are shared by add and edit.
type profileFlags struct {
	name, jobTitle, seniority, imageURL, bio string

	fit        string
	x, y       int
	scale      float64
	imageFlags []string
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().StringVar(&f.jobTitle, "job-title", "", "Job title")
	cmd.Flags().StringVar(&f.seniority, "seniority", "", "Seniority label (the CSV \"Rank\" column)")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "Photo URL")
	cmd.Flags().StringVar(&f.bio, "bio", "", "Bio (markdown)")
	cmd.Flags().StringVar(&f.fit, "image-fit", "", "cover|contain|fill|none")
	cmd.Flags().IntVar(&f.x, "image-x", 0, "Photo offset x (px)")
	cmd.Flags().IntVar(&f.y, "image-y", 0, "Photo offset y (px)")
	cmd.Flags().Float64Var(&f.scale, "image-scale", 0, "Photo zoom (0.5..2)")
	f.imageFlags = []string{"image-fit", "image-x", "image-y", "image-scale"}
}

func (f *profileFlags) imageChanged(cmd *cobra.Command) bool {
	for _, name := range f.imageFlags {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// placement overlays the changed image flags on base.
func (f *profileFlags) placement(cmd *cobra.Command, base model.ImagePlacement) *model.ImagePlacement {
	p := base
	if cmd.Flags().Changed("image-fit") {
		p.Fit = model.ImageFit(strings.ToLower(strings.TrimSpace(f.fit)))
	}
	if cmd.Flags().Changed("image-x") {
		p.X = f.x
	}
	if cmd.Flags().Changed("image-y") {
		p.Y = f.y
	}
	if cmd.Flags().Changed("image-scale") {
		p.Scale = f.scale
	}
	return &p
}

func newMembersAddCmd(app *App) *cobra.Command {
	var f profileFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a member; it is appended after the current last member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := roster.MemberInput{
				Name:      f.name,
				JobTitle:  f.jobTitle,
				Seniority: f.seniority,
				ImageURL:  f.imageURL,
				Bio:       f.bio,
			}
			if f.imageChanged(cmd) {
				in.Image = f.placement(cmd, model.DefaultImagePlacement())
			}
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			m, err := svc.Create(cmd.Context(), app.cfg.Collection, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			// Read back so the output carries the assigned rank.
			if got, err := svc.List(cmd.Context(), app.cfg.Collection, order.SortManual); err == nil {
				for _, it := range got {
					if it.ID == m.ID {
						m = it
					}
				}
			}
			return writeOut(cmd, app, map[string]any{"data": m})
		},
	}
	f.register(cmd)
	return cmd
}

func newMembersEditCmd(app *App) *cobra.Command {
	var f profileFlags
	cmd := &cobra.Command{
		Use:   "edit <member-id>",
		Short: "Change profile fields; only the given flags are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch roster.MemberPatch
			set := func(flag string, dst **string, v string) {
				if cmd.Flags().Changed(flag) {
					*dst = &v
				}
			}
			set("name", &patch.Name, f.name)
			set("job-title", &patch.JobTitle, f.jobTitle)
			set("seniority", &patch.Seniority, f.seniority)
			set("image-url", &patch.ImageURL, f.imageURL)
			set("bio", &patch.Bio, f.bio)

			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			if f.imageChanged(cmd) {
				cur, err := svc.Get(cmd.Context(), app.cfg.Collection, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				patch.Image = f.placement(cmd, cur.Image.Normalize())
			}
			m, err := svc.Update(cmd.Context(), app.cfg.Collection, args[0], patch)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": m})
		},
	}
	f.register(cmd)
	return cmd
}

func newMembersDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <member-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a member; other ranks are left as they are",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			if err := svc.Delete(cmd.Context(), app.cfg.Collection, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"deleted": args[0]}})
		},
	}
}

func newMembersMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <member-id> <up|down>",
		Short: "Swap a member with its neighbour in manual order",
		Long: strings.TrimSpace(`
Swap a member with its nearest neighbour in manual order.

Moving the first member up or the last member down changes nothing and is not an error.
A move also drops any saved expanded layout (see "members reflow --persist").
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := order.ParseDirection(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			res, err := svc.Move(cmd.Context(), app.cfg.Collection, args[0], dir)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}

func newMembersReflowCmd(app *App) *cobra.Command {
	var columns int
	var index int
	var persist bool
	cmd := &cobra.Command{
		Use:   "reflow [member-id]",
		Short: "Expand a member onto its own row and show (or save) the resulting order",
		Example: strings.TrimSpace(`
  # Preview expanding the second member in a 3 column grid
  roster members reflow --index 1 --columns 3

  # Save it; "members collapse" restores the previous order
  roster members reflow member-01j... --persist
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := roster.ReflowRequest{Columns: columns, Persist: persist}
			if req.Columns == 0 {
				req.Columns = app.cfg.Display.Columns
			}
			switch {
			case len(args) == 1:
				req.ID = args[0]
			case cmd.Flags().Changed("index"):
				req.Index = index
			default:
				return writeErr(cmd, model.ValidationError{Field: "member", Reason: "pass a member id or --index"})
			}
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			res, err := svc.Reflow(cmd.Context(), app.cfg.Collection, req)
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.Format == "text" {
				return writeOut(cmd, app, map[string]any{"data": res.Members})
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().IntVar(&columns, "columns", 0, "Grid columns (default: display.columns)")
	cmd.Flags().IntVar(&index, "index", 0, "Position (0-based) of the member to expand")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save the reflowed ranks")
	return cmd
}

func newMembersCollapseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "collapse",
		Short: "Restore the order saved before the last persisted reflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			res, err := svc.Collapse(cmd.Context(), app.cfg.Collection)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}

func newMembersReconcileCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair missing and duplicate ranks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, done, err := app.openService(cmd.Context(), nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			res, err := svc.Reconcile(cmd.Context(), app.cfg.Collection)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}
