package chunk

import (
	"math"
	"unicode"
)

// EstimateTokens approximates the token count of text for advisory sizing.
// CJK characters average roughly 1.5 characters per token, everything else
// roughly 4. The estimate is ceiling-rounded and never authoritative.
func EstimateTokens(text string) int {
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	return int(math.Ceil(float64(cjk)/1.5 + float64(other)/4))
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
