// Package indexing turns tickets into search documents and loads them into
// a search backend.
package indexing

import (
	"encoding/json"
	"strings"

	"github.com/agenthands/ticketkg/internal/ticket"
)

const minEmbedText = 5

// StructureTicket flattens a ticket into the document stored in the search
// index. Absent fields are stored as nulls so every document has the same
// shape.
func StructureTicket(t ticket.Ticket) map[string]any {
	return map[string]any{
		"ticketId":        orNil(t.String("ticketId")),
		"displayId":       orNil(t.String("displayId")),
		"subject":         orNil(t.String("subject")),
		"subcategory":     orNil(t.FirstString("subcategory", "sub_type")),
		"requester_name":  orNil(personName(t, "requester")),
		"technician_name": orNil(personName(t, "technician")),
		"priority":        orNil(t.String("priority")),
		"status":          orNil(t.String("status")),
		"createdTime":     orNil(t.String("createdTime")),
		"updatedTime":     orNil(t.String("updatedTime")),
		"resolutionSteps": ticket.Strings(t.List("resolutionSteps")),
	}
}

// EmbedText is the subject followed by the first two resolution steps.
// Tickets with too little text are embedded from their raw JSON instead.
func EmbedText(t ticket.Ticket) string {
	steps := ticket.Strings(t.List("resolutionSteps"))
	if len(steps) > 2 {
		steps = steps[:2]
	}
	text := t.String("subject") + " " + strings.Join(steps, " ")
	if len(strings.TrimSpace(text)) < minEmbedText {
		raw, err := json.Marshal(t)
		if err != nil {
			return text
		}
		return string(raw)
	}
	return text
}

func personName(t ticket.Ticket, key string) string {
	if name := t.Name(key); name != "" {
		return name
	}
	return t.String(key)
}

func orNil(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
