package assistant

import (
	"strings"
	"unicode"
)

var questionWords = map[string]bool{
	"what": true, "when": true, "where": true, "who": true, "whom": true,
	"whose": true, "why": true, "how": true, "which": true,
	"is": true, "are": true, "am": true, "was": true, "were": true,
	"can": true, "could": true, "would": true, "should": true, "will": true,
	"do": true, "does": true, "did": true, "has": true, "have": true,
	"may": true, "might": true, "shall": true,
}

var questionPhrases = []string{
	"anyone know",
	"does anyone",
	"can someone",
	"can anyone",
	"could someone",
	"any idea",
	"i need help",
	"help me",
	"i wonder",
	"wondering if",
}

// IsQuestion is a cheap punctuation and keyword check for question-shaped text.
func IsQuestion(content string) bool {
	text := strings.ToLower(strings.TrimSpace(content))
	n := len([]rune(text))
	if strings.Contains(text, "?") {
		return n >= 4
	}
	if n < 5 {
		return false
	}

	first := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(first) > 0 && questionWords[strings.TrimSuffix(first[0], "'s")] {
		return true
	}
	for _, p := range questionPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
