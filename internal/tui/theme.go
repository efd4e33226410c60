package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// The grid must stay readable on light and dark terminals, so colors are adaptive.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted          lipgloss.TerminalColor = ac("240", "243")
	colorSurfaceFg      lipgloss.TerminalColor = ac("235", "252")
	colorCardBorder     lipgloss.TerminalColor = ac("250", "243")
	colorSelectedBorder lipgloss.TerminalColor = ac("232", "255")
	colorAccent         lipgloss.TerminalColor = ac("27", "62")
	colorError          lipgloss.TerminalColor = ac("160", "203")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	statusStyle = lipgloss.NewStyle().Foreground(colorAccent)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)

	cardStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorCardBorder).
			Foreground(colorSurfaceFg)
	selectedCardStyle = cardStyle.
				BorderForeground(colorSelectedBorder)
	// style2 cards use square borders.
	squareCardStyle         = cardStyle.Border(lipgloss.NormalBorder())
	squareSelectedCardStyle = squareCardStyle.BorderForeground(colorSelectedBorder)

	nameStyle     = lipgloss.NewStyle().Bold(true)
	initialsStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
)

func cardStyles(cardStyleName string) (normal, selected lipgloss.Style) {
	if cardStyleName == "style2" {
		return squareCardStyle, squareSelectedCardStyle
	}
	return cardStyle, selectedCardStyle
}
