package ticket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) Ticket {
	t.Helper()
	var tk Ticket
	require.NoError(t, json.Unmarshal([]byte(s), &tk))
	return tk
}

func TestTicket_ID(t *testing.T) {
	assert.Equal(t, "T-1", decode(t, `{"ticketId":"T-1","id":"x","displayId":"D"}`).ID())
	assert.Equal(t, "42", decode(t, `{"id":42}`).ID())
	assert.Equal(t, "D-9", decode(t, `{"ticketId":"","displayId":"D-9"}`).ID())
	assert.Equal(t, "", decode(t, `{"ticketId":{"nested":true}}`).ID())
	assert.Equal(t, "", Ticket(nil).ID())
}

func TestTicket_WrongTypesAreAbsent(t *testing.T) {
	tk := decode(t, `{"subject":["a"],"priority":3,"status":null,"requester":"bob"}`)

	assert.Equal(t, "", tk.String("subject"))
	assert.Equal(t, "3", tk.String("priority"))
	assert.Equal(t, "", tk.String("status"))
	assert.Nil(t, tk.List("priority"))
	assert.Nil(t, tk.Object("requester"))
	assert.Equal(t, "", tk.Name("requester"))
}

func TestStrings(t *testing.T) {
	got := Strings([]any{" a ", "", 2.0, map[string]any{"x": 1}, nil, "b"})
	assert.Equal(t, []string{"a", "2", "b"}, got)
}

func TestNormalizeRef(t *testing.T) {
	t.Run("object with name", func(t *testing.T) {
		r, ok := NormalizeRef(map[string]any{"userId": "u1", "name": "Jane Doe"}, TechnicianShape)
		require.True(t, ok)
		assert.Equal(t, Named, r.Kind)
		assert.Equal(t, "u1", r.ID)
		assert.Equal(t, "Jane Doe", r.Label)
	})

	t.Run("object without name uses id", func(t *testing.T) {
		r, ok := NormalizeRef(map[string]any{"id": 7.0}, TechnicianShape)
		require.True(t, ok)
		assert.Equal(t, "7", r.ID)
		assert.Equal(t, "7", r.Label)
	})

	t.Run("bare string", func(t *testing.T) {
		r, ok := NormalizeRef("Jane Doe", TechnicianShape)
		require.True(t, ok)
		assert.Equal(t, Bare, r.Kind)
		assert.Equal(t, "Jane Doe", r.ID)
		assert.Equal(t, "Jane Doe", r.Label)
	})

	t.Run("unusable", func(t *testing.T) {
		for _, v := range []any{nil, "", "   ", map[string]any{"name": ""}, []any{"x"}} {
			_, ok := NormalizeRef(v, TechnicianShape)
			assert.False(t, ok, "%v", v)
		}
	})
}
