// Package archive writes and reads zstd-compressed backups of the shape
// collection. An archive is a JSON header line followed by the collection
// document.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/validation"
)

const (
	// Version is the current archive format version
	Version = 1
	// Kind identifies shape collection archives
	Kind = "user-shapes"
	// Extension is the conventional archive file suffix
	Extension = ".shapes.zst"

	// maxDecoded bounds the decompressed size of an archive
	maxDecoded = 64 << 20
)

// ErrInvalidArchive is returned for input that is not a readable archive
var ErrInvalidArchive = errors.New("invalid shape archive")

// Header is the first line of an archive
type Header struct {
	Version   int    `json:"version"`
	Kind      string `json:"kind"`
	Count     int    `json:"count"`
	CreatedAt string `json:"created_at"`
}

// Write encodes shapes to w
func Write(w io.Writer, shapes models.ShapeCollection, now time.Time) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(enc)
	hb, _ := json.Marshal(Header{
		Version:   Version,
		Kind:      Kind,
		Count:     len(shapes),
		CreatedAt: now.UTC().Format(time.RFC3339),
	})
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}

	if shapes == nil {
		shapes = models.ShapeCollection{}
	}
	if err := json.NewEncoder(bw).Encode(shapes); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode shapes: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes and validates an archive from r
func Read(r io.Reader) (Header, models.ShapeCollection, error) {
	var h Header
	dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxDecoded))
	if err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer dec.Close()

	br := bufio.NewReader(io.LimitReader(dec, maxDecoded))
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("%w: read header: %v", ErrInvalidArchive, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("%w: decode header: %v", ErrInvalidArchive, err)
	}
	if h.Kind != Kind {
		return h, nil, fmt.Errorf("%w: unexpected kind %q", ErrInvalidArchive, h.Kind)
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArchive, h.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("%w: read shapes: %v", ErrInvalidArchive, err)
	}
	shapes, err := validation.ParseShapeCollection(body)
	if err != nil {
		return h, nil, err
	}
	if len(shapes) != h.Count {
		return h, nil, fmt.Errorf("%w: header says %d shapes, found %d", ErrInvalidArchive, h.Count, len(shapes))
	}
	return h, shapes, nil
}
