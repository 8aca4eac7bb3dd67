package cliui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/utils"
)

var typeColors = map[journal.Type]lipgloss.Color{
	journal.TypeInfo:    "39",
	journal.TypeSuccess: "82",
	journal.TypeWarning: "214",
	journal.TypeAI:      "213",
	journal.TypeSystem:  "245",
}

// TypeBadge renders an entry type as a fixed-width colored label.
func TypeBadge(t journal.Type) string {
	color, ok := typeColors[t]
	if !ok {
		color = "245"
	}
	return lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Width(9).
		Render(string(t))
}

// FormatEntry renders one journal entry on a single line. Long messages are
// truncated.
func FormatEntry(e *journal.Entry) string {
	mode := "buffered"
	if e.Streaming {
		mode = "stream"
	}

	return fmt.Sprintf("%s %s %s %s %s",
		DimStyle.Render(e.Timestamp.Local().Format("15:04:05")),
		TypeBadge(e.Type),
		ValueStyle.Render(utils.Truncate(e.Message, 72)),
		DimStyle.Render(fmt.Sprintf("%s %s %d", e.Route, mode, e.Status)),
		StepStyle.Render(fmt.Sprintf("(%d frames, %d bytes, %dms)", e.Frames, e.Bytes, e.DurationMs)),
	)
}
