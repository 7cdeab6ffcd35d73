// Package extraction derives related entities and resolution steps from raw
// ticket records. Every accessor is lenient: a missing or mistyped field
// yields "absent" rather than an error.
package extraction

import (
	"strings"

	"github.com/agenthands/ticketkg/internal/ticket"
)

var (
	technicianKeys  = []string{"technician", "resolver", "assignedTo"}
	categoryKeys    = []string{"category", "type"}
	subcategoryKeys = []string{"subcategory", "sub_type"}
	rootCauseKeys   = []string{"rootCause", "root_cause", "cause"}
	assetKeys       = []string{"asset", "device", "cmdb_asset"}
	clientKeys      = []string{"client", "site", "location"}
	impactKeys      = []string{"impact", "severity"}
	similarKeys     = []string{"similar_ticket_ids", "similar", "relatedTickets"}
	worklogKeys     = []string{"worklog", "work_log", "work_logs", "logs"}
	worklogTextKeys = []string{"text", "note", "description"}
)

// Category is a category with an optional subcategory.
type Category struct {
	Category    string
	Subcategory string
}

// Key is the composite "category[:subcategory]" identity.
func (c Category) Key() string {
	if c.Subcategory == "" {
		return c.Category
	}
	return c.Category + ":" + c.Subcategory
}

// Label is the human form "Category / Subcategory".
func (c Category) Label() string {
	if c.Subcategory == "" {
		return c.Category
	}
	return c.Category + " / " + c.Subcategory
}

func Technician(t ticket.Ticket) (ticket.Ref, bool) {
	return ticket.NormalizeRef(t.First(technicianKeys...), ticket.TechnicianShape)
}

func Asset(t ticket.Ticket) (ticket.Ref, bool) {
	return ticket.NormalizeRef(t.First(assetKeys...), ticket.AssetShape)
}

func Client(t ticket.Ticket) (ticket.Ref, bool) {
	return ticket.NormalizeRef(t.First(clientKeys...), ticket.ClientShape)
}

func TicketCategory(t ticket.Ticket) (Category, bool) {
	cat := scalar(t.First(categoryKeys...))
	if cat == "" {
		return Category{}, false
	}
	return Category{Category: cat, Subcategory: scalar(t.First(subcategoryKeys...))}, true
}

func RootCause(t ticket.Ticket) string {
	return scalar(t.First(rootCauseKeys...))
}

func Impact(t ticket.Ticket) string {
	return scalar(t.First(impactKeys...))
}

// SimilarIDs returns the explicit similarity hints listed on a ticket.
func SimilarIDs(t ticket.Ticket) []string {
	list, ok := t.First(similarKeys...).([]any)
	if !ok {
		return nil
	}
	return ticket.Strings(list)
}

// ExtractSteps collects resolution steps from resolutionSteps, the worklog
// style lists and a free-text resolution, in that order. Entries are trimmed
// and deduplicated by exact text, keeping the first occurrence.
func ExtractSteps(t ticket.Ticket) []string {
	var raw []string

	for _, v := range t.List("resolutionSteps") {
		if s, ok := ticket.Scalar(v); ok {
			raw = append(raw, s)
		}
	}

	for _, key := range worklogKeys {
		for _, entry := range t.List(key) {
			if obj := ticket.AsObject(entry); obj != nil {
				if s := obj.FirstString(worklogTextKeys...); s != "" {
					raw = append(raw, s)
				}
				continue
			}
			if s, ok := ticket.Scalar(entry); ok {
				raw = append(raw, s)
			}
		}
	}

	if s, ok := t.Get("resolution").(string); ok {
		raw = append(raw, s)
	}

	seen := make(map[string]struct{}, len(raw))
	steps := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		steps = append(steps, s)
	}
	return steps
}

func scalar(v any) string {
	if !ticket.Present(v) {
		return ""
	}
	s, _ := ticket.Scalar(v)
	return strings.TrimSpace(s)
}
