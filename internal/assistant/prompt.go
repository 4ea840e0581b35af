package assistant

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/keshon/server-companion/internal/chat"
	"github.com/keshon/server-companion/internal/storage"
)

const (
	// ContextMessages is how many preceding messages go into a prompt.
	ContextMessages = 5
	// DefaultMaxPromptChars caps a prompt in runes.
	DefaultMaxPromptChars = 8000

	promptSuffix = "Please answer the user's question based on the information provided and recent context. " +
		"If you don't have enough information, suggest they contact a moderator. " +
		"Keep responses concise, helpful, and natural. You can reference the conversation context if relevant."
)

// Builder assembles the single-turn prompt for a question.
type Builder struct {
	// MaxChars caps the prompt in runes; zero disables the cap. The question
	// line is never cut, so a prompt may exceed a cap smaller than it.
	MaxChars int
}

type promptParts struct {
	guild    string
	info     string
	history  []string
	question string
}

func (p promptParts) render() string {
	return p.head() + p.question
}

// head is everything before the question line.
func (p promptParts) head() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an AI assistant for the Discord server %q. ", p.guild)
	if p.info != "" {
		fmt.Fprintf(&sb, "Here's important information about this server: %s ", p.info)
	}
	sb.WriteString("\n\nRecent conversation context:\n")
	sb.WriteString(strings.Join(p.history, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(promptSuffix)
	sb.WriteString("\n\n")
	return sb.String()
}

// Build renders the prompt. recent is newest first, as chat.Conversation returns it.
func (b Builder) Build(cfg storage.GuildConfig, guildName string, recent []chat.Message, current chat.Message) string {
	if len(recent) > ContextMessages {
		recent = recent[:ContextMessages]
	}
	history := make([]string, 0, len(recent))
	for _, m := range slices.Backward(recent) {
		content := Sanitize(m.Content)
		if content == "" {
			continue
		}
		history = append(history, SanitizeName(m.Author.Name())+": "+content)
	}

	parts := promptParts{
		guild:    SanitizeName(guildName),
		info:     strings.TrimSpace(cfg.AIContext),
		history:  history,
		question: fmt.Sprintf("User Question from %s: %s", SanitizeName(current.Author.Name()), Sanitize(current.Content)),
	}
	prompt := parts.render()
	if b.MaxChars <= 0 || runeLen(prompt) <= b.MaxChars {
		return prompt
	}

	// oldest context goes first
	for len(parts.history) > 0 && runeLen(prompt) > b.MaxChars {
		parts.history = parts.history[1:]
		prompt = parts.render()
	}
	if runeLen(prompt) > b.MaxChars && parts.info != "" {
		budget := runeLen(parts.info) - (runeLen(prompt) - b.MaxChars)
		parts.info = trimToWord(parts.info, budget)
		prompt = parts.render()
	}
	if runeLen(prompt) <= b.MaxChars {
		return prompt
	}
	head := truncateRunes(parts.head(), b.MaxChars-runeLen(parts.question)-2)
	if head == "" {
		return parts.question
	}
	return head + "\n\n" + parts.question
}

func runeLen(s string) int {
	return len([]rune(s))
}

// trimToWord cuts s to at most n runes, backing off to the last word break.
func trimToWord(s string, n int) string {
	if n <= 0 {
		return ""
	}
	cut := truncateRunes(s, n)
	if len(cut) == len(s) {
		return s
	}
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
