package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tamos/tamos-client-go/internal/models"
)

func TestParseShapeCollection_Valid(t *testing.T) {
	raw := `[
	  {"id":"c1","type":"circle","geometry":{"center":[126.97,37.55],"radius":120},"style":{"fillColor":"#0000FF"}},
	  {"id":"p1","type":"polygon","geometry":[[126.9,37.5],[127.0,37.5],[127.0,37.6]],"style":null},
	  {"id":"m1","type":"marker"}
	]`
	shapes, err := ParseShapeCollection([]byte(raw))
	if err != nil {
		t.Fatalf("ParseShapeCollection: %v", err)
	}
	if len(shapes) != 3 {
		t.Fatalf("len=%d want 3", len(shapes))
	}
	if shapes[1].Type != "polygon" {
		t.Fatalf("shapes[1].Type=%q", shapes[1].Type)
	}
}

func TestParseShapeCollection_Empty(t *testing.T) {
	shapes, err := ParseShapeCollection([]byte(`[]`))
	if err != nil {
		t.Fatalf("empty collection should be valid: %v", err)
	}
	if len(shapes) != 0 {
		t.Fatalf("len=%d", len(shapes))
	}
}

func TestParseShapeCollection_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"id":`,
		"object":         `{"id":"a","type":"circle"}`,
		"array of ints":  `[1,2,3]`,
		"missing id":     `[{"type":"circle"}]`,
		"empty id":       `[{"id":"","type":"circle"}]`,
		"numeric id":     `[{"id":7,"type":"circle"}]`,
		"style string":   `[{"id":"a","type":"circle","style":"red"}]`,
		"duplicate ids":  `[{"id":"a","type":"circle"},{"id":"a","type":"polygon"}]`,
		"missing type":   `[{"id":"a"}]`,
		"plain text":     `hello`,
		"empty document": ``,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseShapeCollection([]byte(raw))
			if !errors.Is(err, ErrMalformedCollection) {
				t.Fatalf("err=%v want ErrMalformedCollection", err)
			}
		})
	}
}

func TestCheckCollection_InvalidDocument(t *testing.T) {
	shapes := models.ShapeCollection{{ID: "a", Type: "circle", Geometry: json.RawMessage(`{bad`)}}
	if err := CheckCollection(shapes); !errors.Is(err, ErrMalformedCollection) {
		t.Fatalf("err=%v", err)
	}
}

func TestCheckCollection_Style(t *testing.T) {
	cases := []struct {
		style string
		ok    bool
	}{
		{"", true},
		{"null", true},
		{`{"color":"red"}`, true},
		{` {"weight":2}`, true},
		{`["red"]`, false},
		{`"red"`, false},
		{`3`, false},
	}
	for _, c := range cases {
		shapes := models.ShapeCollection{{ID: "s", Type: "marker", Style: json.RawMessage(c.style)}}
		err := CheckCollection(shapes)
		if c.ok && err != nil {
			t.Errorf("style %q: unexpected error %v", c.style, err)
		}
		if !c.ok && !errors.Is(err, ErrMalformedCollection) {
			t.Errorf("style %q: err=%v want ErrMalformedCollection", c.style, err)
		}
	}
}
