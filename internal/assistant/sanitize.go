package assistant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxMessageRunes = 500
	maxNameRunes    = 64
	filtered        = "[filtered]"
)

var (
	// phrasings that try to replace the assistant's instructions
	overridePattern = regexp.MustCompile(`(?i)\b(?:` +
		`(?:ignore|disregard|forget|override)\s+(?:all\s+|any\s+|the\s+|your\s+|everything\s+)*(?:previous|prior|above|earlier|system|original)?\s*(?:instructions?|prompts?|rules|messages|context)` +
		`|(?:ignore|disregard|forget)\s+(?:all\s+|everything\s+|anything\s+)*(?:above|before|previous(?:ly)?|prior|earlier)\b` +
		`|you\s+are\s+now\b` +
		`|new\s+instructions?` +
		`|system\s+prompt` +
		`|act\s+as\s+(?:an?\s+)?(?:system|developer|admin)` +
		`)`)
	// speaker labels that would let content pose as another turn of the prompt
	roleLabelPattern = regexp.MustCompile(`(?i)\b(?:system|assistant|developer|user|model|human|instructions?|user\s+question\s+from\s+[^:]{0,64})\s*:`)
	// markdown headings used as turn markers, "### Instruction" and the like
	headingLabelPattern = regexp.MustCompile(`(?i)#{1,6}\s*(?:instructions?|system|assistant|response|user|human)\b\s*:?`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u200e', '\u200f', '\u2060', '\ufeff':
		return true
	}
	return r >= '\u202a' && r <= '\u202e' || r >= '\u2066' && r <= '\u2069'
}

// Sanitize flattens one chat message into a single safe prompt line.
func Sanitize(s string) string {
	// fold full-width and compatibility forms so "ｓｙｓｔｅｍ:" reads as "system:"
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case isZeroWidth(r), unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = whitespaceRun.ReplaceAllString(s, " ")

	s = strings.ReplaceAll(s, "```", "'''")
	s = strings.ReplaceAll(s, "@everyone", "everyone")
	s = strings.ReplaceAll(s, "@here", "here")
	s = overridePattern.ReplaceAllString(s, filtered)
	s = headingLabelPattern.ReplaceAllString(s, filtered)
	s = roleLabelPattern.ReplaceAllString(s, filtered)

	return truncateRunes(strings.TrimSpace(s), maxMessageRunes)
}

// SanitizeName cleans a display name so it cannot forge a speaker label.
func SanitizeName(s string) string {
	s = strings.ReplaceAll(Sanitize(s), ":", "")
	s = strings.TrimSpace(truncateRunes(s, maxNameRunes))
	if s == "" {
		return "unknown"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
