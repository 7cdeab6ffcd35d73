package search

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agenthands/ticketkg/internal/ticket"
)

// BM25 parameters, the Lucene defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var termPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// analyze lower-cases text and splits it into letter/digit runs, close to
// the standard analyzer of the search engine.
func analyze(text string) []string {
	return termPattern.FindAllString(strings.ToLower(text), -1)
}

// fieldTokens is the analyzed form of one document field. A list field keeps
// one token slice per element so phrases never span elements.
type fieldTokens struct {
	values [][]string
	raw    []string
	tf     map[string]int
	length int
}

func newFieldTokens(raw []string) *fieldTokens {
	ft := &fieldTokens{raw: raw, tf: make(map[string]int)}
	for _, v := range raw {
		toks := analyze(v)
		ft.values = append(ft.values, toks)
		ft.length += len(toks)
		for _, t := range toks {
			ft.tf[t]++
		}
	}
	return ft
}

// fieldStats holds corpus-wide statistics for one field.
type fieldStats struct {
	docs     int
	totalLen int
	df       map[string]int
}

func (s *fieldStats) idf(term string) float64 {
	n := float64(s.docs)
	df := float64(s.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func (s *fieldStats) avgLen() float64 {
	if s.docs == 0 {
		return 0
	}
	return float64(s.totalLen) / float64(s.docs)
}

// score is the BM25 contribution of term in ft.
func (s *fieldStats) score(ft *fieldTokens, term string) float64 {
	tf := float64(ft.tf[term])
	if tf == 0 || s == nil {
		return 0
	}
	norm := 1.0
	if avg := s.avgLen(); avg > 0 {
		norm = 1 - bm25B + bm25B*float64(ft.length)/avg
	}
	return s.idf(term) * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
}

// autoFuzziness is the edit distance allowed for a term under AUTO.
func autoFuzziness(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// editDistance is the optimal string alignment distance, counting adjacent
// transpositions as one edit.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[len(ra)][len(rb)]
}

// fieldStrings returns the string values held by field in a source document.
// Numbers are rendered; objects are ignored.
func fieldStrings(src map[string]any, field string) []string {
	switch v := src[strings.TrimSuffix(field, ".keyword")].(type) {
	case nil:
		return nil
	case []any:
		return ticket.Strings(v)
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := ticket.Scalar(v); ok && s != "" {
			return []string{s}
		}
	}
	return nil
}
