package insights

import (
	"fmt"
	"strings"
)

// Facts are the analytics values the chat replies may quote.
type Facts struct {
	MostAvailableHour int
	BusiestDay        string
}

const chatHelp = "How can I assist you? Try: best time, busy day, wait, book"

// ChatResponse routes a message to a canned reply by keyword. Rules are
// checked in order and the first match wins.
func ChatResponse(message string, facts Facts) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "best time") || strings.Contains(msg, "available"):
		return fmt.Sprintf("Most available hour: %d:00", facts.MostAvailableHour)
	case strings.Contains(msg, "busy") || strings.Contains(msg, "crowd"):
		return fmt.Sprintf("Busiest day: %s", facts.BusiestDay)
	case strings.Contains(msg, "wait"):
		return "Use queue tracking with your token to see your position and wait time."
	case strings.Contains(msg, "book"):
		return "Use appointment booking to pick a free slot."
	default:
		return chatHelp
	}
}
