// Package output provides styled terminal output for the kb CLI: status
// messages, item formatting, and the column board rendered with lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	columnStyles = map[models.ColumnKey]lipgloss.Style{
		models.ColumnBacklog:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.ColumnTodo:       lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.ColumnInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.ColumnInReview:   lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.ColumnDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
	columnBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an unstyled message
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// JSON prints v as indented JSON.
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// JSONError prints an error in the same envelope the server uses.
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{"error": map[string]string{"code": code, "message": message}})
	fmt.Println(string(data))
}

// ColumnLabel returns the display name of a column, e.g. "IN PROGRESS".
func ColumnLabel(c models.ColumnKey) string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "_", " "))
}

// FormatColumn renders a column key with its color.
func FormatColumn(c models.ColumnKey) string {
	style, ok := columnStyles[c]
	if !ok {
		return fmt.Sprintf("[%s]", c)
	}
	return style.Render(fmt.Sprintf("[%s]", c))
}

// ShortID trims an item id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatItemShort formats an item on one line.
func FormatItemShort(it models.Item) string {
	return strings.Join([]string{
		titleStyle.Render(ShortID(it.ID)),
		FormatColumn(it.Column),
		it.Title,
		subtleStyle.Render(fmt.Sprintf("@%d", it.Position)),
	}, "  ")
}

// FormatItemLong formats an item with its metadata. The description is
// passed in already rendered so callers can choose markdown or plain text.
func FormatItemLong(it models.Item, description string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", it.ID, it.Title)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Column: %s | Position: %d\n", FormatColumn(it.Column), it.Position)
	if !it.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "Updated: %s\n", FormatTimeAgo(it.UpdatedAt))
	}
	if description != "" {
		sb.WriteString("\n")
		sb.WriteString(description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderBoard draws the board as side-by-side column boxes fitted to width.
// Card titles are truncated to the column width.
func RenderBoard(s board.State, width int) string {
	cols := s.Columns()
	if len(cols) == 0 {
		return subtleStyle.Render("(empty board)")
	}
	frame := columnBox.GetHorizontalFrameSize()
	inner := max(width/len(cols)-frame, 12)

	boxes := make([]string, 0, len(cols))
	for _, c := range cols {
		items := s.Column(c)
		header := ColumnLabel(c)
		if style, ok := columnStyles[c]; ok {
			header = style.Bold(true).Render(header)
		}
		lines := []string{header + subtleStyle.Render(fmt.Sprintf(" (%d)", len(items)))}
		for _, it := range items {
			lines = append(lines, ansi.Truncate(it.Title, inner, "…"))
			lines = append(lines, subtleStyle.Render(ShortID(it.ID)))
		}
		if len(items) == 0 {
			lines = append(lines, subtleStyle.Render("-"))
		}
		boxes = append(boxes, columnBox.Width(inner+frame-2).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// RenderColumnList prints one column as a plain numbered list.
func RenderColumnList(s board.State, c models.ColumnKey) string {
	items := s.Column(c)
	var sb strings.Builder
	sb.WriteString(FormatColumn(c))
	sb.WriteString("\n")
	if len(items) == 0 {
		sb.WriteString(subtleStyle.Render("  (empty)"))
		sb.WriteString("\n")
	}
	for i, it := range items {
		fmt.Fprintf(&sb, "  %d. %s\n", i, FormatItemShort(it))
	}
	return sb.String()
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
