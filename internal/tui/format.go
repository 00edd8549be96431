package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/quailchat/quail/internal/api"
)

// truncate shortens s to fit within width display cells, appending an
// ellipsis when text was cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return runewidth.Truncate(s, width-1, "") + "…"
}

// padRight pads s with spaces to exactly width display cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return truncate(s, width)
	}
	return s + strings.Repeat(" ", width-w)
}

// formatTime renders a message timestamp: clock time for today, short date
// otherwise.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 02")
}

// messageBody renders the message payload as a single line.
func messageBody(msg api.Message) string {
	switch {
	case msg.Poll != nil:
		return "📊 " + msg.Poll.Question
	case msg.ImageURL != "":
		return "[image] " + msg.ImageURL
	case msg.DocumentURL != "":
		name := msg.DocumentName
		if name == "" {
			name = msg.DocumentURL
		}
		return "[document] " + name
	default:
		return strings.ReplaceAll(msg.Content, "\n", " ")
	}
}

// pollLines renders a poll's options with vote counts, marking the
// viewer's current selections.
func pollLines(msg api.Message, viewer string) []string {
	if msg.Poll == nil {
		return nil
	}
	mine := make(map[int]bool)
	for _, i := range msg.PollVotes.VotesFor(viewer) {
		mine[i] = true
	}
	lines := make([]string, 0, len(msg.Poll.Options))
	for i, opt := range msg.Poll.Options {
		marker := "[ ]"
		if mine[i] {
			marker = "[x]"
		}
		lines = append(lines, fmt.Sprintf("  %s %s (%d)", marker, opt, msg.PollVotes.Count(i)))
	}
	return lines
}

// unreadBadge renders the roster unread counter, empty when zero.
func unreadBadge(count int) string {
	if count <= 0 {
		return ""
	}
	if count > 99 {
		return "(99+)"
	}
	return fmt.Sprintf("(%d)", count)
}
