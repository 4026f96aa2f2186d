package boardview

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/kb/internal/models"
)

var (
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeColumnStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	cursorStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	grabbedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(warningColor).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	messageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle  = lipgloss.NewStyle().Foreground(warningColor)
	columnAccents = map[models.ColumnKey]lipgloss.Color{
		models.ColumnBacklog:    lipgloss.Color("245"),
		models.ColumnTodo:       lipgloss.Color("45"),
		models.ColumnInProgress: warningColor,
		models.ColumnInReview:   lipgloss.Color("141"),
		models.ColumnDone:       lipgloss.Color("42"),
	}
)

// columnHeader renders a column title in its accent color.
func columnHeader(c models.ColumnKey, label string) string {
	style := headerStyle
	if accent, ok := columnAccents[c]; ok {
		style = style.Foreground(accent)
	}
	return style.Render(label)
}
