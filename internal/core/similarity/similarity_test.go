package similarity

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return out
}

func TestTokens(t *testing.T) {
	toks := Tokens("Printer is on FIRE  fire ok")
	assert.Len(t, toks, 2)
	assert.Contains(t, toks, "printer")
	assert.Contains(t, toks, "fire")
	assert.Empty(t, Tokens(""))
}

func TestOverlap(t *testing.T) {
	a := Tokens("printer jam error")
	b := Tokens("printer jam issue")
	assert.InDelta(t, 2.0/3.0, Overlap(a, b), 1e-9)
	assert.Equal(t, Overlap(a, b), Overlap(b, a))
	assert.Zero(t, Overlap(a, Tokens("")))
}

func TestThresholdBoundary(t *testing.T) {
	// 3 of 5 tokens shared: exactly 0.6, linked.
	a := Tokens("alpha bravo charlie delta echo")
	b := Tokens("alpha bravo charlie foxtrot golf")
	score := Overlap(a, b)
	assert.Equal(t, 0.6, score)
	assert.True(t, Linked(score))

	// 59 of 100 tokens shared: 0.59, not linked.
	shared := words("shared", 59)
	left := append(append([]string{}, shared...), words("left", 41)...)
	right := append(append([]string{}, shared...), words("right", 41)...)
	score = Overlap(Tokens(strings.Join(left, " ")), Tokens(strings.Join(right, " ")))
	assert.InDelta(t, 0.59, score, 1e-9)
	assert.False(t, Linked(score))
}

func TestPairs(t *testing.T) {
	subjects := []Subject{
		{ID: "1", Tokens: Tokens("printer jam error")},
		{ID: "2", Tokens: Tokens("printer jam issue")},
		{ID: "3", Tokens: Tokens("vpn not connecting")},
		{ID: "4", Tokens: nil},
	}

	pairs := Pairs(subjects)

	assert.Len(t, pairs, 1)
	assert.Equal(t, "1", pairs[0].A)
	assert.Equal(t, "2", pairs[0].B)
	assert.InDelta(t, 2.0/3.0, pairs[0].Score, 1e-9)
}
