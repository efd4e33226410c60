package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"roster-cli/internal/config"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/roster"
	"roster-cli/internal/store"
)

type inputMode int

const (
	modeGrid inputMode = iota
	modeAdd
	modeConfirmDelete
)

type membersLoadedMsg struct {
	items []model.Member
	rows  [][]model.Member
	// expandedID is cleared when the expanded member no longer exists.
	expandedID string
	err        error
}

type opDoneMsg struct {
	status  string
	focusID string
	err     error
}

type rosterEventMsg roster.Event

type appModel struct {
	ctx context.Context
	svc *roster.Service
	log *zap.Logger

	collection string
	display    config.DisplayConfig
	sort       order.SortMode
	columns    int

	items      []model.Member
	rows       [][]model.Member
	selectedID string
	expandedID string

	mode  inputMode
	input textinput.Model
	keys  keyMap
	help  help.Model

	width  int
	height int

	status string
	err    error

	events <-chan roster.Event
}

func newAppModel(ctx context.Context, svc *roster.Service, opts Options) (appModel, error) {
	col, err := store.NormalizeCollection(opts.Collection)
	if err != nil {
		return appModel{}, err
	}
	mode, err := order.ParseSortMode(opts.Display.SortOrder)
	if err != nil {
		return appModel{}, err
	}
	columns := opts.Display.Columns
	if columns < config.MinColumns || columns > config.MaxColumns {
		columns = config.DefaultColumns
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	in := textinput.New()
	in.Placeholder = "Name"
	in.CharLimit = 120
	in.Width = 40

	return appModel{
		ctx:        ctx,
		svc:        svc,
		log:        opts.Logger,
		collection: col,
		display:    opts.Display,
		sort:       mode,
		columns:    columns,
		input:      in,
		keys:       defaultKeyMap(),
		help:       help.New(),
	}, nil
}

func (m appModel) Init() tea.Cmd {
	if m.events == nil {
		return m.loadCmd()
	}
	return tea.Batch(m.loadCmd(), waitForEvent(m.events))
}

func waitForEvent(ch <-chan roster.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return rosterEventMsg(ev)
	}
}

// loadCmd lists the collection. An expanded member in manual order is shown
// through a reflow preview; other sort modes only give it a row of its own.
func (m appModel) loadCmd() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	col, mode, columns, expanded := m.collection, m.sort, m.columns, m.expandedID
	return func() tea.Msg {
		if expanded != "" && mode == order.SortManual {
			res, err := svc.Reflow(ctx, col, roster.ReflowRequest{ID: expanded, Columns: columns})
			if err == nil {
				return membersLoadedMsg{items: res.Members, rows: res.Rows, expandedID: expanded}
			}
			if !model.IsNotFound(err) {
				return membersLoadedMsg{err: err}
			}
			expanded = ""
		}
		items, err := svc.List(ctx, col, mode)
		if err != nil {
			return membersLoadedMsg{err: err}
		}
		if expanded != "" && !containsID(items, expanded) {
			expanded = ""
		}
		return membersLoadedMsg{items: items, rows: order.Rows(items, columns, expanded), expandedID: expanded}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case membersLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.items = msg.items
		m.rows = msg.rows
		m.expandedID = msg.expandedID
		if !containsID(m.items, m.selectedID) {
			m.selectedID = ""
			if len(m.items) > 0 {
				m.selectedID = m.items[0].ID
			}
		}
		return m, nil

	case opDoneMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			if msg.focusID != "" {
				m.selectedID = msg.focusID
			}
		} else {
			m.log.Warn("tui operation failed", zap.Error(msg.err))
		}
		return m, m.loadCmd()

	case rosterEventMsg:
		return m, tea.Batch(m.loadCmd(), waitForEvent(m.events))

	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		default:
			return m.updateGrid(msg)
		}
	}
	return m, nil
}

func (m appModel) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Left):
		m.step(-1)
		return m, nil
	case key.Matches(msg, m.keys.Right):
		m.step(1)
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.stepRow(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.stepRow(1)
		return m, nil

	case key.Matches(msg, m.keys.MoveUp):
		return m.move(order.Up)
	case key.Matches(msg, m.keys.MoveDown):
		return m.move(order.Down)

	case key.Matches(msg, m.keys.Expand):
		if m.selectedID == "" {
			return m, nil
		}
		if m.expandedID == m.selectedID {
			m.expandedID = ""
		} else {
			m.expandedID = m.selectedID
		}
		m.status = ""
		return m, m.loadCmd()

	case key.Matches(msg, m.keys.Persist):
		if m.expandedID == "" {
			m.status = "expand a member first"
			return m, nil
		}
		if m.sort != order.SortManual {
			m.status = "switch to manual order to save the expanded layout"
			return m, nil
		}
		ctx, svc, col, id, columns := m.ctx, m.svc, m.collection, m.expandedID, m.columns
		return m, func() tea.Msg {
			_, err := svc.Reflow(ctx, col, roster.ReflowRequest{ID: id, Columns: columns, Persist: true})
			return opDoneMsg{status: "saved expanded order", focusID: id, err: err}
		}

	case key.Matches(msg, m.keys.Collapse):
		m.expandedID = ""
		ctx, svc, col := m.ctx, m.svc, m.collection
		return m, func() tea.Msg {
			res, err := svc.Collapse(ctx, col)
			return opDoneMsg{status: fmt.Sprintf("restored %d ranks", res.Restored), err: err}
		}

	case key.Matches(msg, m.keys.Sort):
		modes := order.SortModes()
		for i, s := range modes {
			if s == m.sort {
				m.sort = modes[(i+1)%len(modes)]
				break
			}
		}
		m.status = "sort: " + string(m.sort)
		return m, m.loadCmd()

	case key.Matches(msg, m.keys.Wider):
		if m.columns < config.MaxColumns {
			m.columns++
		}
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Narrower):
		if m.columns > config.MinColumns {
			m.columns--
		}
		return m, m.loadCmd()

	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.input.Reset()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Delete):
		if m.selectedID != "" {
			m.mode = modeConfirmDelete
		}
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		ctx, svc, col := m.ctx, m.svc, m.collection
		return m, func() tea.Msg {
			res, err := svc.Reconcile(ctx, col)
			return opDoneMsg{status: fmt.Sprintf("reconciled, %d ranks changed", res.Changed), err: err}
		}
	}
	return m, nil
}

func (m appModel) move(dir order.Direction) (tea.Model, tea.Cmd) {
	if m.selectedID == "" {
		return m, nil
	}
	if m.sort != order.SortManual {
		m.status = "switch to manual order to move members"
		return m, nil
	}
	// A manual move invalidates any expanded layout.
	m.expandedID = ""
	ctx, svc, col, id := m.ctx, m.svc, m.collection, m.selectedID
	return m, func() tea.Msg {
		res, err := svc.Move(ctx, col, id, dir)
		status := "moved " + string(dir)
		if err == nil && !res.Moved {
			status = "already at the " + map[order.Direction]string{order.Up: "start", order.Down: "end"}[dir]
		}
		return opDoneMsg{status: status, focusID: id, err: err}
	}
}

func (m appModel) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeGrid
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.status = "name is required"
			return m, nil
		}
		m.mode = modeGrid
		m.input.Blur()
		ctx, svc, col := m.ctx, m.svc, m.collection
		return m, func() tea.Msg {
			created, err := svc.Create(ctx, col, roster.MemberInput{Name: name})
			return opDoneMsg{status: "added " + name, focusID: created.ID, err: err}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeGrid
	if msg.String() != "y" {
		m.status = "delete cancelled"
		return m, nil
	}
	target, ok := m.selected()
	if !ok {
		return m, nil
	}
	if target.ID == m.expandedID {
		m.expandedID = ""
	}
	ctx, svc, col := m.ctx, m.svc, m.collection
	return m, func() tea.Msg {
		err := svc.Delete(ctx, col, target.ID)
		return opDoneMsg{status: "deleted " + target.Name, err: err}
	}
}

func (m appModel) selected() (model.Member, bool) {
	for _, it := range m.items {
		if it.ID == m.selectedID {
			return it, true
		}
	}
	return model.Member{}, false
}

func (m *appModel) step(delta int) {
	idx := indexOf(m.items, m.selectedID)
	if idx < 0 {
		return
	}
	idx += delta
	if idx < 0 || idx >= len(m.items) {
		return
	}
	m.selectedID = m.items[idx].ID
}

// stepRow moves the cursor to the same column of the previous/next row,
// clamping to the row's last card.
func (m *appModel) stepRow(delta int) {
	r, c := position(m.rows, m.selectedID)
	if r < 0 {
		return
	}
	r += delta
	if r < 0 || r >= len(m.rows) {
		return
	}
	row := m.rows[r]
	if c >= len(row) {
		c = len(row) - 1
	}
	m.selectedID = row[c].ID
}

func position(rows [][]model.Member, id string) (row, col int) {
	for r, rr := range rows {
		for c, it := range rr {
			if it.ID == id {
				return r, c
			}
		}
	}
	return -1, -1
}

func indexOf(items []model.Member, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func containsID(items []model.Member, id string) bool {
	return id != "" && indexOf(items, id) >= 0
}
