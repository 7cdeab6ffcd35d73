package ticket

import "strings"

// RefKind tells whether a reference came from an object or a bare value.
type RefKind int

const (
	Bare RefKind = iota
	Named
)

// Ref is a normalized reference to a related entity (technician, asset,
// client). Fields such as "technician" arrive either as an object with an
// id and a name, or as a bare string or number.
type Ref struct {
	Kind  RefKind
	ID    string
	Label string
	Raw   any
}

// RefShape names the object keys holding the id and the label.
type RefShape struct {
	IDKeys    []string
	LabelKeys []string
}

var (
	TechnicianShape = RefShape{IDKeys: []string{"userId", "id"}, LabelKeys: []string{"name", "displayName"}}
	AssetShape      = RefShape{IDKeys: []string{"id", "assetId", "name"}, LabelKeys: []string{"name"}}
	ClientShape     = RefShape{IDKeys: []string{"id", "clientId", "siteId", "name"}, LabelKeys: []string{"name", "displayName"}}
)

// NormalizeRef turns v into a Ref. ok is false when no usable id exists.
func NormalizeRef(v any, shape RefShape) (Ref, bool) {
	if obj := AsObject(v); obj != nil {
		id := obj.FirstString(shape.IDKeys...)
		if strings.TrimSpace(id) == "" {
			return Ref{}, false
		}
		label := obj.FirstString(shape.LabelKeys...)
		if label == "" {
			label = id
		}
		return Ref{Kind: Named, ID: id, Label: label, Raw: v}, true
	}

	s, ok := Scalar(v)
	if !ok || !Present(v) || strings.TrimSpace(s) == "" {
		return Ref{}, false
	}
	return Ref{Kind: Bare, ID: s, Label: s, Raw: v}, true
}
