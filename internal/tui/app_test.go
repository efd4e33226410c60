package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"roster-cli/internal/config"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/roster"
	"roster-cli/internal/store"
)

func plainColors(t *testing.T) {
	t.Helper()
	old := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() { lipgloss.SetColorProfile(old) })
}

func newTestModel(t *testing.T, names ...string) (appModel, *roster.Service) {
	t.Helper()
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := roster.New(store.NewMemory(), roster.Options{Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}})
	ctx := context.Background()
	for _, n := range names {
		if _, err := svc.Create(ctx, "team", roster.MemberInput{Name: n}); err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
	}
	m, err := newAppModel(ctx, svc, Options{Collection: "team", Display: config.Default().Display})
	if err != nil {
		t.Fatalf("newAppModel: %v", err)
	}
	m.width, m.height = 100, 40
	return drain(t, m, m.loadCmd()), svc
}

// drain runs cmd and feeds the messages this package produces back into the model.
func drain(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		switch msg.(type) {
		case membersLoadedMsg, opDoneMsg:
		default:
			return m
		}
		next, c := m.Update(msg)
		m = next.(appModel)
		cmd = c
	}
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m appModel, keys ...string) appModel {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(keyMsg(k))
		m = next.(appModel)
		m = drain(t, m, cmd)
	}
	return m
}

func itemNames(items []model.Member) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return strings.Join(out, ",")
}

func storedOrder(t *testing.T, svc *roster.Service) string {
	t.Helper()
	items, err := svc.List(context.Background(), "team", order.SortManual)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return itemNames(items)
}

func TestLoad_SelectsFirstMember(t *testing.T) {
	m, _ := newTestModel(t, "A", "B", "C", "D")
	if got := itemNames(m.items); got != "A,B,C,D" {
		t.Fatalf("items=%s", got)
	}
	if len(m.rows) != 2 {
		t.Fatalf("expected 2 rows with 3 columns, got %d", len(m.rows))
	}
	if m.selectedID != m.items[0].ID {
		t.Fatalf("expected first member selected")
	}
}

func TestNavigation_StepsAcrossGrid(t *testing.T) {
	m, _ := newTestModel(t, "A", "B", "C", "D", "E")

	m = press(t, m, "right", "right")
	if sel, _ := m.selected(); sel.Name != "C" {
		t.Fatalf("expected C, got %s", sel.Name)
	}
	m = press(t, m, "j")
	// The second row only has two cards; the cursor clamps to the last one.
	if sel, _ := m.selected(); sel.Name != "E" {
		t.Fatalf("expected E after row down, got %s", sel.Name)
	}
	m = press(t, m, "j")
	if sel, _ := m.selected(); sel.Name != "E" {
		t.Fatalf("row down on the last row should stay put, got %s", sel.Name)
	}
	m = press(t, m, "k", "left")
	if sel, _ := m.selected(); sel.Name != "A" {
		t.Fatalf("expected A, got %s", sel.Name)
	}
	m = press(t, m, "right", "right", "right")
	// Right steps through the list, wrapping onto the next row.
	if sel, _ := m.selected(); sel.Name != "D" {
		t.Fatalf("expected D, got %s", sel.Name)
	}
}

func TestMove_SwapsAndKeepsSelection(t *testing.T) {
	m, svc := newTestModel(t, "A", "B", "C")
	m = press(t, m, "l", "K")
	if got := storedOrder(t, svc); got != "B,A,C" {
		t.Fatalf("stored order=%s", got)
	}
	if sel, _ := m.selected(); sel.Name != "B" {
		t.Fatalf("selection should follow the moved member, got %s", sel.Name)
	}
	m = press(t, m, "K")
	if m.status != "already at the start" {
		t.Fatalf("status=%q", m.status)
	}
	m = press(t, m, "J", "J")
	if got := storedOrder(t, svc); got != "A,C,B" {
		t.Fatalf("stored order=%s", got)
	}
}

func TestMove_RequiresManualSort(t *testing.T) {
	m, svc := newTestModel(t, "B", "A")
	m = press(t, m, "s")
	if m.sort != order.SortName {
		t.Fatalf("sort=%s", m.sort)
	}
	if got := itemNames(m.items); got != "A,B" {
		t.Fatalf("items=%s", got)
	}
	m = press(t, m, "J")
	if !strings.Contains(m.status, "manual") {
		t.Fatalf("status=%q", m.status)
	}
	if got := storedOrder(t, svc); got != "B,A" {
		t.Fatalf("stored order changed: %s", got)
	}
}

func TestExpand_PreviewDoesNotPersist(t *testing.T) {
	m, svc := newTestModel(t, "A", "B", "C", "D")
	m = press(t, m, "l", "enter")
	if m.expandedID == "" {
		t.Fatalf("expected an expanded member")
	}
	if got := itemNames(m.items); got != "B,A,C,D" {
		t.Fatalf("preview=%s", got)
	}
	if len(m.rows[0]) != 1 || m.rows[0][0].Name != "B" {
		t.Fatalf("expanded member should sit alone on the first row: %v", m.rows[0])
	}
	if got := storedOrder(t, svc); got != "A,B,C,D" {
		t.Fatalf("stored order=%s", got)
	}
	m = press(t, m, "enter")
	if m.expandedID != "" || itemNames(m.items) != "A,B,C,D" {
		t.Fatalf("expected collapsed preview, got %s", itemNames(m.items))
	}
}

func TestPersistThenCollapse(t *testing.T) {
	m, svc := newTestModel(t, "A", "B", "C", "D")
	m = press(t, m, "p")
	if m.status != "expand a member first" {
		t.Fatalf("status=%q", m.status)
	}
	m = press(t, m, "l", "enter", "p")
	if got := storedOrder(t, svc); got != "B,A,C,D" {
		t.Fatalf("stored order=%s", got)
	}
	m = press(t, m, "c")
	if m.err != nil {
		t.Fatalf("collapse: %v", m.err)
	}
	if got := storedOrder(t, svc); got != "A,B,C,D" {
		t.Fatalf("stored order=%s", got)
	}
	if m.expandedID != "" {
		t.Fatalf("collapse should clear the expanded member")
	}
}

func TestAdd_AppendsAndSelects(t *testing.T) {
	m, svc := newTestModel(t, "A", "B")
	m = press(t, m, "a")
	if m.mode != modeAdd {
		t.Fatalf("expected add mode")
	}
	m = press(t, m, "Zed", "enter")
	if m.mode != modeGrid {
		t.Fatalf("expected grid mode after enter")
	}
	if got := storedOrder(t, svc); got != "A,B,Zed" {
		t.Fatalf("stored order=%s", got)
	}
	if sel, _ := m.selected(); sel.Name != "Zed" {
		t.Fatalf("expected new member selected, got %q", sel.Name)
	}

	m = press(t, m, "a", "enter")
	if m.mode != modeAdd || m.status != "name is required" {
		t.Fatalf("empty name should keep the prompt open: mode=%d status=%q", m.mode, m.status)
	}
	m = press(t, m, "esc")
	if m.mode != modeGrid {
		t.Fatalf("esc should cancel")
	}
}

func TestDelete_AsksForConfirmation(t *testing.T) {
	m, svc := newTestModel(t, "A", "B")
	m = press(t, m, "d", "n")
	if got := storedOrder(t, svc); got != "A,B" {
		t.Fatalf("stored order=%s", got)
	}
	m = press(t, m, "d", "y")
	if got := storedOrder(t, svc); got != "B" {
		t.Fatalf("stored order=%s", got)
	}
	if sel, _ := m.selected(); sel.Name != "B" {
		t.Fatalf("selection should fall back to the first member, got %q", sel.Name)
	}
}

func TestColumns_Clamp(t *testing.T) {
	m, _ := newTestModel(t, "A")
	m = press(t, m, "+", "+", "+", "+", "+")
	if m.columns != config.MaxColumns {
		t.Fatalf("columns=%d", m.columns)
	}
	for i := 0; i < 8; i++ {
		m = press(t, m, "-")
	}
	if m.columns != config.MinColumns {
		t.Fatalf("columns=%d", m.columns)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestView_RendersCardsAndExpandedBio(t *testing.T) {
	plainColors(t)
	m, svc := newTestModel(t, "Ada Lovelace", "Grace Hopper")
	bio := "Analyst of engines."
	title := "Mathematician"
	if _, err := svc.Update(context.Background(), "team", m.items[0].ID, roster.MemberPatch{Bio: &bio, JobTitle: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	m = drain(t, m, m.loadCmd())

	out := xansi.Strip(m.View())
	for _, want := range []string{"Team members", "1. Ada Lovelace", "2. Grace Hopper", "Mathematician", "AL"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}

	m = press(t, m, "enter")
	out = xansi.Strip(m.View())
	if !strings.Contains(out, "Analyst") {
		t.Fatalf("expected rendered bio in expanded card:\n%s", out)
	}
}

func TestView_EmptyCollection(t *testing.T) {
	plainColors(t)
	m, _ := newTestModel(t)
	if out := m.View(); !strings.Contains(out, "No team members yet") {
		t.Fatalf("unexpected view:\n%s", out)
	}
}

func TestNewAppModel_Validation(t *testing.T) {
	svc := roster.New(store.NewMemory(), roster.Options{})
	if _, err := newAppModel(context.Background(), svc, Options{Collection: "Not Valid!"}); err == nil {
		t.Fatalf("expected collection error")
	}
	if _, err := newAppModel(context.Background(), svc, Options{Display: config.DisplayConfig{SortOrder: "random"}}); err == nil {
		t.Fatalf("expected sort error")
	}
	m, err := newAppModel(context.Background(), svc, Options{Display: config.DisplayConfig{Columns: 42}})
	if err != nil {
		t.Fatalf("newAppModel: %v", err)
	}
	if m.columns != config.DefaultColumns || m.collection != model.DefaultCollection {
		t.Fatalf("defaults not applied: columns=%d collection=%q", m.columns, m.collection)
	}
}

func TestViewState_RestoreAndCapture(t *testing.T) {
	m, _ := newTestModel(t, "A", "B", "C")
	id := m.items[2].ID

	m.restoreView(store.TUIView{Sort: "name", Columns: 5, SelectedID: id})
	m = drain(t, m, m.loadCmd())
	if m.sort != order.SortName || m.columns != 5 {
		t.Fatalf("sort=%s columns=%d", m.sort, m.columns)
	}
	if sel, _ := m.selected(); sel.Name != "C" {
		t.Fatalf("expected saved selection, got %q", sel.Name)
	}

	// Invalid saved values keep the current ones; a vanished member falls back to the first.
	m.restoreView(store.TUIView{Sort: "random", Columns: 42, SelectedID: "member-gone"})
	m = drain(t, m, m.loadCmd())
	if m.sort != order.SortName || m.columns != 5 {
		t.Fatalf("sort=%s columns=%d", m.sort, m.columns)
	}
	if sel, _ := m.selected(); sel.Name != "A" {
		t.Fatalf("expected fallback to first member, got %q", sel.Name)
	}

	if got := m.viewState(); got.Sort != "name" || got.Columns != 5 || got.SelectedID != m.items[0].ID {
		t.Fatalf("viewState=%+v", got)
	}
}
