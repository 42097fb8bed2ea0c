package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/validation"
)

func sampleShapes() models.ShapeCollection {
	return models.ShapeCollection{
		{ID: "c1", Type: "circle", Geometry: json.RawMessage(`{"center":[126.97,37.55],"radius":120}`), Style: json.RawMessage(`{"fillOpacity":0.4}`)},
		{ID: "p1", Type: "polygon", Geometry: json.RawMessage(`[[126.9,37.5],[127.0,37.5],[127.0,37.6]]`), Style: json.RawMessage(`null`)},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := Write(&buf, sampleShapes(), now); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h, shapes, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if h.Count != 2 || h.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("header=%+v", h)
	}
	if !shapes.SetEqual(sampleShapes()) {
		t.Fatalf("shapes=%v", shapes.IDs())
	}
}

func compress(t *testing.T, raw string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(raw)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestRead_Rejects(t *testing.T) {
	cases := map[string]string{
		"wrong kind":     `{"version":1,"kind":"snapshot","count":0}` + "\n[]",
		"wrong version":  `{"version":9,"kind":"user-shapes","count":0}` + "\n[]",
		"count mismatch": `{"version":1,"kind":"user-shapes","count":3}` + "\n[]",
		"no header":      `[]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Read(compress(t, raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, _, err := Read(compress(t, `{"version":1,"kind":"user-shapes","count":1}`+"\n"+`[{"type":"circle"}]`))
	if !errors.Is(err, validation.ErrMalformedCollection) {
		t.Fatalf("err=%v want ErrMalformedCollection", err)
	}

	if _, _, err := Read(bytes.NewReader([]byte("plain text, not zstd"))); err == nil {
		t.Fatal("expected error for uncompressed input")
	}
}
