package speech

import (
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/speechwriter/internal/prompt"
)

// SpeakerContent is the prepared remarks of one speaker, in transcript order.
type SpeakerContent struct {
	Speaker    string   `json:"speaker"`
	Utterances []string `json:"utterances"`
}

// Text joins the utterances with blank lines.
func (c SpeakerContent) Text() string {
	return strings.Join(c.Utterances, "\n\n")
}

// Chars counts the characters across all utterances.
func (c SpeakerContent) Chars() int {
	n := 0
	for _, u := range c.Utterances {
		n += utf8.RuneCountInString(u)
	}
	return n
}

func (c SpeakerContent) Empty() bool {
	return len(c.Utterances) == 0
}

// splitUtterances breaks model output on lines holding only the passage delimiter.
// Surrounding whitespace is trimmed and blank passages are dropped.
func splitUtterances(text string) []string {
	var (
		out     []string
		current []string
	)
	flush := func() {
		passage := strings.TrimSpace(strings.Join(current, "\n"))
		if passage != "" {
			out = append(out, passage)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == prompt.PassageDelimiter {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}
