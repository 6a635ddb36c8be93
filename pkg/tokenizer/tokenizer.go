// Package tokenizer gives vendor-neutral token estimates for prompts.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Estimate returns a rough token count: the larger of 4/3 tokens per word and
// one token per four characters. Vendors report exact usage after the call.
func Estimate(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := utf8.RuneCountInString(text) / 4
	return max(byWords, byChars, 1)
}
