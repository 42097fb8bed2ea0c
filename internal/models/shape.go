package models

import (
	"bytes"
	"encoding/json"
)

// Shape is one user-drawn annotation. Geometry and style are kept as
// compact JSON text; geometry may be any JSON value (circle objects,
// polygon and bbox arrays), style is an object.
type Shape struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry"`
	Style    json.RawMessage `json:"style"`
}

// ShapeCollection is the full set of shapes, persisted as one unit
type ShapeCollection []Shape

// Canonical returns a copy of s with geometry and style compacted.
// Missing documents become JSON null.
func (s Shape) Canonical() (Shape, error) {
	geom, err := compactJSON(s.Geometry)
	if err != nil {
		return Shape{}, err
	}
	style, err := compactJSON(s.Style)
	if err != nil {
		return Shape{}, err
	}
	return Shape{ID: s.ID, Type: s.Type, Geometry: geom, Style: style}, nil
}

// Equal reports whether two shapes carry the same id, type and documents,
// ignoring insignificant whitespace in the documents
func (s Shape) Equal(o Shape) bool {
	a, errA := s.Canonical()
	b, errB := o.Canonical()
	if errA != nil || errB != nil {
		return false
	}
	return a.ID == b.ID && a.Type == b.Type &&
		bytes.Equal(a.Geometry, b.Geometry) && bytes.Equal(a.Style, b.Style)
}

// IDs returns the shape ids in collection order
func (c ShapeCollection) IDs() []string {
	ids := make([]string, len(c))
	for i, s := range c {
		ids[i] = s.ID
	}
	return ids
}

// SetEqual reports whether both collections hold the same shapes,
// regardless of order
func (c ShapeCollection) SetEqual(o ShapeCollection) bool {
	if len(c) != len(o) {
		return false
	}
	byID := make(map[string]Shape, len(o))
	for _, s := range o {
		byID[s.ID] = s
	}
	for _, s := range c {
		other, ok := byID[s.ID]
		if !ok || !s.Equal(other) {
			return false
		}
	}
	return true
}

func compactJSON(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
