package session

import (
	"strings"
	"unicode"
)

// hallucinationPhrases are closing-credits-style fillers the speech model
// produces over silence or music. Matched as lowercase substrings.
var hallucinationPhrases = []string{
	"thank you",
	"thanks for watching",
	"subscribe",
}

// IsHallucination reports whether transcribed text looks like degenerate
// model output: empty after trimming, made of 3 or fewer distinct non-space
// characters (repetitive-token output like "... ... ..."), or containing a
// known filler phrase. Best-effort heuristic; rejected text is dropped
// silently, never emitted or stored.
func IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	distinct := make(map[rune]struct{})
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		distinct[r] = struct{}{}
	}
	if len(distinct) <= 3 {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range hallucinationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return false
}
