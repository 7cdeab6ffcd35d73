package retrieval

import (
	"regexp"
	"strings"
)

const (
	// MaxTerms caps the query tokens kept before synonym expansion.
	MaxTerms    = 8
	maxSynonyms = 4
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\-.@]`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"by": {}, "and": {}, "or": {}, "is": {}, "are": {}, "with": {}, "from": {},
}

type synonymEntry struct {
	term     string
	synonyms []string
}

// synonyms is ordered: when a token matches several entries the earlier
// entry contributes first.
var synonyms = []synonymEntry{
	{"email", []string{"mail", "outlook", "exchange", "imap", "smtp"}},
	{"password", []string{"passwd", "pwd", "credentials", "login"}},
	{"printer", []string{"printing", "print"}},
	{"vpn", []string{"virtual private network"}},
	{"wifi", []string{"wi-fi", "wireless", "wireless network"}},
	{"slow", []string{"lag", "sluggish", "unresponsive", "slowdown"}},
}

// Expand lower-cases text, strips punctuation other than - . _ and @, drops
// stopwords and keeps the first maxTerms unique tokens. Up to four domain
// synonyms of those tokens are appended; a token matches an entry when it
// equals or starts with the entry term.
func Expand(text string, maxTerms int) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), " ")

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) >= maxTerms {
			break
		}
	}

	var syns []string
	for _, tok := range out {
		for _, entry := range synonyms {
			if !strings.HasPrefix(tok, entry.term) {
				continue
			}
			for _, s := range entry.synonyms {
				if _, dup := seen[s]; dup {
					continue
				}
				seen[s] = struct{}{}
				syns = append(syns, s)
				if len(syns) >= maxSynonyms {
					return append(out, syns...)
				}
			}
		}
	}
	return append(out, syns...)
}
