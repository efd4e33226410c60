package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"roster-cli/internal/model"
	"roster-cli/internal/order"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	cardLines     = 3
)

func (m appModel) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	header := m.renderHeader(width)
	footer := m.renderFooter(width)
	avail := height - lipgloss.Height(header) - lipgloss.Height(footer)
	if avail < 1 {
		avail = 1
	}
	body := normalizePane(m.renderGrid(width, avail), width, avail)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m appModel) renderHeader(width int) string {
	title := headerStyle.Render("Team members")
	meta := mutedStyle.Render(fmt.Sprintf("%s · %d · sort %s · %d columns",
		m.collection, len(m.items), m.sort, m.columns))
	return truncateToWidth(title+"  "+meta, width)
}

func (m appModel) renderFooter(width int) string {
	var lines []string
	switch m.mode {
	case modeAdd:
		lines = append(lines, "New member: "+m.input.View())
	case modeConfirmDelete:
		if it, ok := m.selected(); ok {
			lines = append(lines, errorStyle.Render(fmt.Sprintf("Delete %s? (y/N)", it.Name)))
		}
	}
	switch {
	case m.err != nil:
		lines = append(lines, errorStyle.Render(truncateToWidth(m.err.Error(), width)))
	case m.status != "":
		lines = append(lines, statusStyle.Render(truncateToWidth(m.status, width)))
	}
	lines = append(lines, m.help.View(m.keys))
	return strings.Join(lines, "\n")
}

// renderGrid draws the visible rows, scrolled so the selected card stays on screen.
func (m appModel) renderGrid(width, height int) string {
	if len(m.rows) == 0 {
		return mutedStyle.Render("No team members yet. Press a to add one.")
	}
	rendered := make([]string, len(m.rows))
	for i, row := range m.rows {
		rendered[i] = m.renderRow(row, width)
	}

	selRow, _ := position(m.rows, m.selectedID)
	if selRow < 0 {
		selRow = 0
	}
	start := selRow
	used := lipgloss.Height(rendered[selRow])
	for start > 0 {
		h := lipgloss.Height(rendered[start-1])
		if used+h > height {
			break
		}
		used += h
		start--
	}
	end := selRow + 1
	for end < len(rendered) {
		h := lipgloss.Height(rendered[end])
		if used+h > height {
			break
		}
		used += h
		end++
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered[start:end]...)
}

func (m appModel) renderRow(row []model.Member, width int) string {
	if len(row) == 1 && row[0].ID == m.expandedID {
		return m.renderCard(row[0], width, true)
	}
	cardW := width / m.columns
	if cardW < 8 {
		cardW = 8
	}
	cards := make([]string, 0, len(row))
	for _, it := range row {
		cards = append(cards, m.renderCard(it, cardW, false))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m appModel) renderCard(it model.Member, width int, expanded bool) string {
	normal, selected := cardStyles(m.display.CardStyle)
	st := normal
	if it.ID == m.selectedID {
		st = selected
	}
	innerW := width - st.GetHorizontalFrameSize()
	if innerW < 1 {
		innerW = 1
	}

	name := it.Name
	if m.sort == order.SortManual && it.HasRank() {
		name = fmt.Sprintf("%d. %s", it.Rank, name)
	}
	lines := []string{
		truncateToWidth(initialsStyle.Render(initials(it.Name))+" "+nameStyle.Render(name), innerW),
		truncateToWidth(mutedStyle.Render(it.JobTitle), innerW),
		truncateToWidth(mutedStyle.Render(it.Seniority), innerW),
	}
	if expanded {
		if bio := renderMarkdown(it.Bio, innerW); bio != "" {
			lines = append(lines, "", bio)
		}
		if it.ImageURL != "" {
			lines = append(lines, mutedStyle.Render(truncateToWidth(it.ImageURL, innerW)))
		}
	} else if bio := firstLine(it.Bio); bio != "" {
		lines[2] = truncateToWidth(mutedStyle.Render(bio), innerW)
		if it.Seniority != "" {
			lines[2] = truncateToWidth(mutedStyle.Render(it.Seniority+" · "+bio), innerW)
		}
	}
	for len(lines) < cardLines {
		lines = append(lines, "")
	}
	// Width covers padding but not the border.
	return st.Width(innerW + st.GetHorizontalPadding()).Render(strings.Join(lines, "\n"))
}

func initials(name string) string {
	var out []rune
	for _, f := range strings.Fields(name) {
		out = append(out, []rune(f)[0])
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}
