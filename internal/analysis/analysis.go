// Package analysis inspects user text for intents the orchestrator reacts to.
// The only intent so far is a request to be handed over to a human agent.
package analysis

import (
	"strings"
	"unicode"

	"supportdesk/backend/internal/config"
)

// IsHandoffRequest reports whether text asks for a human, matching it against the
// configured phrase list. Multi-word phrases match as substrings of the normalised
// text; single words must appear as whole words so "agents" or "management" do not trigger.
func IsHandoffRequest(text string) bool {
	return MatchHandoffPhrase(text, config.HandoffPhrases) != ""
}

// MatchHandoffPhrase returns the first phrase found in text, or "" when none matches.
func MatchHandoffPhrase(text string, phrases []string) string {
	normalized := normalize(text)
	if normalized == "" {
		return ""
	}
	words := strings.Fields(normalized)
	padded := " " + normalized + " "

	for _, phrase := range phrases {
		p := normalize(phrase)
		if p == "" {
			continue
		}
		if strings.Contains(p, " ") {
			if strings.Contains(padded, " "+p+" ") {
				return phrase
			}
			continue
		}
		for _, w := range words {
			if w == p {
				return phrase
			}
		}
	}
	return ""
}

// normalize lowercases text and collapses punctuation and whitespace runs into single spaces.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if r == '\'' || r == '\u2019' {
			// apostrophes join contractions: "don't" stays one word
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
