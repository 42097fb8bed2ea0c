package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tamos/tamos-client-go/internal/archive"
	"github.com/tamos/tamos-client-go/internal/bridge"
	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/validation"
)

// ShapeStore is the local annotation store
type ShapeStore interface {
	ReplaceAll(ctx context.Context, shapes models.ShapeCollection) error
	ReplaceAllJSON(ctx context.Context, raw []byte) error
	LoadAll(ctx context.Context) (models.ShapeCollection, error)
	Count(ctx context.Context) (int, error)
	Available() bool
}

// ShapeService handles saving, loading and moving user shapes
type ShapeService struct {
	store  ShapeStore
	bridge *bridge.Bridge
	log    *log.Logger

	// mergeMu serializes read-merge-replace sequences
	mergeMu sync.Mutex
}

// NewShapeService creates a shape service
func NewShapeService(store ShapeStore, b *bridge.Bridge, logger *log.Logger) *ShapeService {
	if logger == nil {
		logger = log.Default()
	}
	return &ShapeService{store: store, bridge: b, log: logger}
}

// Save replaces the stored collection with the raw document from the UI
func (s *ShapeService) Save(ctx context.Context, raw []byte) error {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()
	return s.store.ReplaceAllJSON(ctx, raw)
}

// Load reads the stored collection and publishes it on shapes-loaded
func (s *ShapeService) Load(ctx context.Context) (models.ShapeCollection, error) {
	shapes, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	s.bridge.PublishShapes(shapes)
	return shapes, nil
}

// Import merges shapes from an imported text blob into the stored
// collection. The blob may hold one shape object or an array of them;
// shapes without an id get a fresh one, and imported shapes replace stored
// shapes with the same id. Returns the imported shapes.
func (s *ShapeService) Import(ctx context.Context, blob []byte) (models.ShapeCollection, error) {
	imported, err := parseImport(blob)
	if err != nil {
		return nil, err
	}

	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	current, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceAll(ctx, merge(current, imported)); err != nil {
		return nil, err
	}
	s.log.Printf("[shapes] imported %d shapes", len(imported))
	return imported, nil
}

// Export writes the stored collection as a compressed archive
func (s *ShapeService) Export(ctx context.Context, w io.Writer) (int, error) {
	shapes, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := archive.Write(w, shapes, time.Now()); err != nil {
		return 0, fmt.Errorf("write archive: %w", err)
	}
	return len(shapes), nil
}

// Restore replaces the stored collection with the contents of an archive
func (s *ShapeService) Restore(ctx context.Context, r io.Reader) (models.ShapeCollection, error) {
	_, shapes, err := archive.Read(r)
	if err != nil {
		return nil, err
	}

	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()
	if err := s.store.ReplaceAll(ctx, shapes); err != nil {
		return nil, err
	}
	return shapes, nil
}

// StoreStatus reports store availability and size for health checks
func (s *ShapeService) StoreStatus(ctx context.Context) (available bool, count int) {
	if !s.store.Available() {
		return false, 0
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, 0
	}
	return true, n
}

func parseImport(blob []byte) (models.ShapeCollection, error) {
	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrMalformedCollection, err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("%w: expected a shape or an array of shapes", validation.ErrMalformedCollection)
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue // left for the schema to reject
		}
		if id, present := obj["id"]; !present || id == nil || id == "" {
			obj["id"] = uuid.NewString()
		}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return validation.ParseShapeCollection(raw)
}

func merge(current, imported models.ShapeCollection) models.ShapeCollection {
	replaced := make(map[string]bool, len(imported))
	for _, s := range imported {
		replaced[s.ID] = true
	}
	out := make(models.ShapeCollection, 0, len(current)+len(imported))
	for _, s := range current {
		if !replaced[s.ID] {
			out = append(out, s)
		}
	}
	return append(out, imported...)
}
