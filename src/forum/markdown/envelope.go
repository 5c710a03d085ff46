package markdown

import (
	"fmt"
	"strings"
)

const (
	titlePrefix  = "# "
	authorPrefix = "Author: "
)

// Envelope is the title/author header carried in a stored proposal body.
type Envelope struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// ComposeEnvelope builds the string stored in a proposal's body field.
func ComposeEnvelope(title, author, body string) string {
	return fmt.Sprintf("%s%s\n%s%s\n\n%s", titlePrefix, title, authorPrefix, author, body)
}

// ParseEnvelope splits a stored body back into its parts. Strings without
// the header parse with an empty title and author and the whole (trimmed)
// input as body.
func ParseEnvelope(raw string) Envelope {
	if raw == "" {
		return Envelope{}
	}
	lines := strings.Split(raw, "\n")
	var env Envelope
	start := 0
	if strings.HasPrefix(lines[0], titlePrefix) {
		env.Title = strings.TrimSpace(lines[0][len(titlePrefix):])
		start = 1
	}
	if len(lines) > 1 && strings.HasPrefix(lines[1], authorPrefix) {
		env.Author = strings.TrimSpace(lines[1][len(authorPrefix):])
		start = 2
	}
	env.Body = strings.TrimSpace(strings.Join(lines[start:], "\n"))
	return env
}
