package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"roster-cli/internal/config"
	"roster-cli/internal/order"
	"roster-cli/internal/roster"
	"roster-cli/internal/store"
)

type Options struct {
	Collection string
	Display    config.DisplayConfig
	Logger     *zap.Logger
	// StateDir holds tui_state.json; empty disables restoring the last view.
	StateDir string
}

// Run opens the interactive member manager until the user quits or ctx ends.
func Run(ctx context.Context, svc *roster.Service, opts Options) error {
	m, err := newAppModel(ctx, svc, opts)
	if err != nil {
		return err
	}

	state, err := store.LoadTUIState(opts.StateDir)
	if err != nil {
		m.log.Warn("tui state not loaded", zap.Error(err))
		state = nil
	}
	if state != nil {
		if v, ok := state.Views[m.collection]; ok {
			m.restoreView(v)
		}
	}

	// Redraw when another process or the web admin mutates the same collection.
	events := make(chan roster.Event, 16)
	unwatch := svc.Watch(func(ev roster.Event) {
		if ev.Collection != m.collection {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})
	defer unwatch()
	m.events = events

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(appModel); ok && state != nil {
		state.Views[fm.collection] = fm.viewState()
		if serr := store.SaveTUIState(opts.StateDir, state); serr != nil {
			m.log.Warn("tui state not saved", zap.Error(serr))
		}
	}
	return err
}

// restoreView applies a saved view. Values that no longer validate are ignored.
func (m *appModel) restoreView(v store.TUIView) {
	if v.Sort != "" {
		if mode, err := order.ParseSortMode(v.Sort); err == nil {
			m.sort = mode
		}
	}
	if v.Columns >= config.MinColumns && v.Columns <= config.MaxColumns {
		m.columns = v.Columns
	}
	m.selectedID = v.SelectedID
}

func (m appModel) viewState() store.TUIView {
	return store.TUIView{
		Sort:       string(m.sort),
		Columns:    m.columns,
		SelectedID: m.selectedID,
	}
}
