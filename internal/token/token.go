// Package token estimates token counts for text without calling a tokenizer
// service. Estimates are heuristic: exact parity with any provider's
// tokenizer is not a goal, only determinism and monotonicity (a longer text
// never estimates fewer tokens than a prefix of it).
//
// The heuristic splits runes into two density classes:
//   - dense scripts (CJK ideographs, Hangul, kana) average ~2 chars/token
//   - everything else (Latin, digits, punctuation) averages ~4 chars/token
//
// and sums the two proportions.
package token

import "unicode"

const (
	// denseCharsPerToken is the average characters per token for CJK-like scripts.
	denseCharsPerToken = 2.0

	// sparseCharsPerToken is the average characters per token for other scripts.
	sparseCharsPerToken = 4.0
)

// denseRanges covers scripts whose tokenizers emit roughly one token per
// two characters: Han ideographs, Hangul, and Japanese kana.
var denseRanges = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hangul,
	unicode.Hiragana,
	unicode.Katakana,
}

// Estimate returns the estimated token count for text.
// It is deterministic, side-effect-free, and returns 0 for empty input.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	var dense, sparse int
	for _, r := range text {
		if unicode.IsOneOf(denseRanges, r) {
			dense++
		} else {
			sparse++
		}
	}

	estimate := float64(dense)/denseCharsPerToken + float64(sparse)/sparseCharsPerToken
	count := int(estimate)
	if estimate > float64(count) {
		count++ // round up so a non-empty text never estimates zero
	}
	return count
}
