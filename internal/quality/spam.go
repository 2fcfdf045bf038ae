package quality

import (
	"strings"
	"unicode"
)

// Spam heuristic thresholds.
const (
	repeatWordMinLen   = 3    // words this short are ignored by the repetition check
	repeatTokenShare   = 0.30 // one word filling more of the token stream is spam
	capsShare          = 0.50 // capital letters above this share of letters is spam
	capsMinTextLen     = 20   // caps check only applies to text longer than this
	emojiTokenDensity  = 0.20 // emojis above this share of token count is spam
)

// IsSpam applies the repetition, shouting and emoji-flood heuristics to the
// combined post text.
func IsSpam(text string) bool {
	return hasRepeatedWord(text) || isShouting(text) || isEmojiFlood(text)
}

// hasRepeatedWord flags text where any single word longer than three
// characters makes up more than 30% of the tokens. Coordinated pump posts
// hammer one ticker or verb over and over.
func hasRepeatedWord(text string) bool {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return false
	}
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) <= repeatWordMinLen {
			continue
		}
		counts[tok]++
	}
	limit := float64(len(tokens)) * repeatTokenShare
	for _, n := range counts {
		if float64(n) > limit {
			return true
		}
	}
	return false
}

// isShouting flags text longer than 20 characters where more than half of the
// letters are uppercase.
func isShouting(text string) bool {
	if len([]rune(text)) <= capsMinTextLen {
		return false
	}
	var letters, caps int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return float64(caps)/float64(letters) > capsShare
}

// isEmojiFlood flags text where emoji count exceeds 20% of the token count.
func isEmojiFlood(text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return false
	}
	emojis := 0
	for _, r := range text {
		if isEmoji(r) {
			emojis++
		}
	}
	return float64(emojis) > float64(len(tokens))*emojiTokenDensity
}

// isEmoji covers the common emoji and pictograph blocks; rocket ships and
// moons are what actually shows up in pump posts.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols and pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport (the rocket lives here)
		return true
	case r >= 0x1F900 && r <= 0x1F9FF: // supplemental symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	default:
		return false
	}
}

// containsBlockedKeyword reports whether the text contains any configured
// blocked keyword, case-insensitively.
func containsBlockedKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
