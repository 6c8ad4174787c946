// Package match scores recognized text against the target phrase and decides whether a sample
// deserves to be saved.
package match

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Scorer rates how well needle appears in haystack, 0-100.
type Scorer interface {
	Score(needle, haystack string) int
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(needle, haystack string) int

func (f ScorerFunc) Score(needle, haystack string) int { return f(needle, haystack) }

// Partial is the default Scorer, backed by PartialRatio.
var Partial Scorer = ScorerFunc(PartialRatio)

// PartialRatio is the classic fuzzy "partial ratio", ignoring case: the shorter string is
// compared with windows of the longer one anchored at each of their matching blocks, and the
// best SequenceMatcher ratio (2*matches/total) wins, scaled to 0-100 with half-to-even rounding.
// Identical strings (including two empty ones) score 100; a single empty side scores 0.
func PartialRatio(needle, haystack string) int {
	a := strings.ToLower(needle)
	b := strings.ToLower(haystack)
	if a == b {
		return 100
	}
	short, long := runes(a), runes(b)
	if len(short) == 0 || len(long) == 0 {
		return 0
	}
	if len(short) > len(long) {
		short, long = long, short
	}

	best := 0.0
	for _, block := range difflib.NewMatcher(short, long).GetMatchingBlocks() {
		start := max(block.B-block.A, 0)
		end := min(start+len(short), len(long))

		r := difflib.NewMatcher(short, long[start:end]).Ratio()
		if r > 0.995 {
			return 100
		}
		best = max(best, r)
	}
	return int(math.RoundToEven(100 * best))
}

// runes splits s into one-character strings, the unit difflib matches on.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// ShouldSave is the dedup/threshold policy: a sample is saved only when it matches
// (score >= threshold, inclusive) and its text differs from the last saved text.
func ShouldSave(text, lastSaved string, score, threshold int) bool {
	return score >= threshold && text != lastSaved
}
