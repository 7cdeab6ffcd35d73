// Package ticket provides lenient access to loosely-structured ticket
// records decoded from JSON. No field is guaranteed to exist or to have the
// expected type; accessors treat anything missing or mistyped as absent.
package ticket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ticket is a raw ticket record as decoded from JSON.
type Ticket map[string]any

// Get returns the raw value for key, or nil.
func (t Ticket) Get(key string) any {
	if t == nil {
		return nil
	}
	return t[key]
}

// First returns the first present, non-empty value among keys.
func (t Ticket) First(keys ...string) any {
	for _, k := range keys {
		if v := t.Get(k); Present(v) {
			return v
		}
	}
	return nil
}

// String returns the scalar value of key rendered as a string. Objects and
// lists are not scalars and yield "".
func (t Ticket) String(key string) string {
	s, _ := Scalar(t.Get(key))
	return s
}

// FirstString returns the first scalar, non-empty value among keys.
func (t Ticket) FirstString(keys ...string) string {
	for _, k := range keys {
		v := t.Get(k)
		if s, ok := Scalar(v); ok && Present(v) && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// List returns key as a list, or nil when it is absent or not a list.
func (t Ticket) List(key string) []any {
	switch v := t.Get(key).(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

// Object returns key as a nested record, or nil.
func (t Ticket) Object(key string) Ticket {
	return AsObject(t.Get(key))
}

// ID is the first non-empty identifier among ticketId, id and displayId.
func (t Ticket) ID() string {
	return t.FirstString("ticketId", "id", "displayId")
}

// DisplayID is the human-facing identifier, falling back to ticketId.
func (t Ticket) DisplayID() string {
	return t.FirstString("displayId", "ticketId")
}

// Name returns the "name" of a nested object field, e.g. requester.name.
func (t Ticket) Name(key string) string {
	return t.Object(key).FirstString("name", "displayName")
}

// AsObject converts v to a Ticket when it is a JSON object.
func AsObject(v any) Ticket {
	switch o := v.(type) {
	case map[string]any:
		return Ticket(o)
	case Ticket:
		return o
	}
	return nil
}

// Present reports whether v carries a value: non-nil, non-empty strings,
// lists and objects, non-zero numbers and true.
func Present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case json.Number:
		return x != "" && x != "0"
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case Ticket:
		return len(x) > 0
	}
	return true
}

// Scalar renders strings, numbers and booleans. ok is false for nil,
// objects and lists.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// Strings returns every scalar element of a list, trimmed, skipping empties.
func Strings(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := Scalar(v); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
