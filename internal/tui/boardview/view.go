package boardview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/kb/internal/models"
)

const defaultWidth = 100

func (m Model) renderView() string {
	width := m.Width
	if width == 0 {
		width = defaultWidth
	}
	if width < MinWidth {
		return fmt.Sprintf("Terminal too small (need %d columns)", MinWidth)
	}

	var sb strings.Builder
	sb.WriteString(m.renderTitleBar(width))
	sb.WriteString("\n")
	sb.WriteString(m.renderColumns(width))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Model) renderTitleBar(width int) string {
	left := titleStyle.Render(m.title)
	right := subtleStyle.Render("synced " + m.LastSync.Format("15:04:05"))
	if m.inFlight > 0 {
		right = pendingStyle.Render(fmt.Sprintf("saving %d…", m.inFlight))
	}
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderColumns(width int) string {
	cols := m.state.Columns()
	if len(cols) == 0 {
		return subtleStyle.Render("(empty board)")
	}
	frame := columnStyle.GetHorizontalFrameSize()
	inner := max(width/len(cols)-frame, 8)

	boxes := make([]string, 0, len(cols))
	for i, c := range cols {
		boxes = append(boxes, m.renderColumn(c, i == m.col, inner, frame))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m Model) renderColumn(c models.ColumnKey, active bool, inner, frame int) string {
	items := m.state.Column(c)
	label := strings.ToUpper(strings.ReplaceAll(string(c), "_", " "))
	lines := []string{
		columnHeader(c, ansi.Truncate(fmt.Sprintf("%s %d", label, len(items)), inner-2, "…")),
	}
	for i, it := range items {
		title := ansi.Truncate(it.Title, inner-2, "…")
		switch {
		case active && i == m.row && m.grabbing:
			lines = append(lines, grabbedStyle.Render("≡ "+title))
		case active && i == m.row:
			lines = append(lines, cursorStyle.Render("> "+title))
		default:
			lines = append(lines, "  "+title)
		}
	}
	if len(items) == 0 {
		lines = append(lines, subtleStyle.Render("  (empty)"))
	}

	style := columnStyle
	if active {
		style = activeColumnStyle
	}
	body := strings.Join(lines, "\n")
	return style.Width(inner + frame - 2).Render(body)
}

func (m Model) renderStatus() string {
	switch {
	case m.Err != nil:
		return errorStyle.Render("✗ " + m.Err.Error())
	case m.grabbing:
		return pendingStyle.Render("moving card: arrows to move, enter to drop")
	case m.Message != "":
		return messageStyle.Render(m.Message)
	default:
		if it, ok := m.Selected(); ok {
			return subtleStyle.Render(fmt.Sprintf("%s  @%d", it.ID, it.Position))
		}
		return ""
	}
}
