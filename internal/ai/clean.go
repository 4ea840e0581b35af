package ai

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

var wrappingQuotes = []struct{ open, close string }{
	{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
}

// cleanReply strips reasoning blocks and one pair of wrapping quotes.
// Length limits are left to the caller.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(thinkBlock.ReplaceAllString(reply, ""))

	for _, q := range wrappingQuotes {
		if len(reply) >= len(q.open)+len(q.close) &&
			strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
			reply = strings.TrimSpace(reply[len(q.open) : len(reply)-len(q.close)])
			break
		}
	}
	return reply
}

func isGarbageResponse(s string) bool {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "<html"), strings.Contains(l, "<!doctype"):
		return true
	case strings.Contains(l, "not allowed"):
		return true
	case len([]rune(strings.TrimSpace(s))) < 2:
		return true
	}
	return false
}
