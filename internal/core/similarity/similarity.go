// Package similarity scores how related two tickets are from their subjects.
package similarity

import (
	"strings"
	"unicode/utf8"
)

// Threshold is the inclusive minimum overlap score for a similar_to link.
const Threshold = 0.6

// minTokenLen excludes short words such as "is" or "on" from comparison.
const minTokenLen = 3

// Tokens returns the set of lower-cased whitespace-separated words of s that
// are longer than two characters.
func Tokens(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			set[f] = struct{}{}
		}
	}
	return set
}

// Overlap is |a ∩ b| / max(|a|, |b|). Empty sets score 0.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(large))
}

// Linked reports whether a score reaches Threshold.
func Linked(score float64) bool {
	return score >= Threshold
}

// Subject is one comparable entry: an identifier and its token set.
type Subject struct {
	ID     string
	Tokens map[string]struct{}
}

// Pair is a linked pair of subjects with their overlap score.
type Pair struct {
	A, B  string
	Score float64
}

// Pairs compares every pair of subjects and returns those at or above the
// threshold, in input order. This is quadratic in len(subjects); it is meant
// for corpora of hundreds of tickets. Larger corpora need a blocking step
// (bucketing subjects by shared rare tokens) in front of this loop.
func Pairs(subjects []Subject) []Pair {
	var out []Pair
	for i := 0; i < len(subjects); i++ {
		if len(subjects[i].Tokens) == 0 {
			continue
		}
		for j := i + 1; j < len(subjects); j++ {
			score := Overlap(subjects[i].Tokens, subjects[j].Tokens)
			if score > 0 && Linked(score) {
				out = append(out, Pair{A: subjects[i].ID, B: subjects[j].ID, Score: score})
			}
		}
	}
	return out
}
