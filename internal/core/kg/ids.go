package kg

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	maxIDValueRunes = 200
	idHashLen       = 8
	textHashLen     = 10
)

// MakeID builds a deterministic node id "prefix:value:hash". The value part
// is trimmed, spaces become underscores and it is cut to 200 characters; the
// hash is taken over the whole trimmed value so that long values sharing a
// prefix still get distinct ids.
func MakeID(prefix, value string) string {
	v := strings.TrimSpace(value)
	safe := strings.ReplaceAll(v, " ", "_")
	if r := []rune(safe); len(r) > maxIDValueRunes {
		safe = string(r[:maxIDValueRunes])
	}
	return prefix + ":" + safe + ":" + digest(v, idHashLen)
}

// HashText is a short content hash used to key Step nodes.
func HashText(text string) string {
	return digest(text, textHashLen)
}

func digest(s string, n int) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}
