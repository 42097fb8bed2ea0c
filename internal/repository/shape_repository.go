package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/tamos/tamos-client-go/internal/database"
	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/validation"
)

var (
	// ErrStoreUnavailable is returned while the store has not been
	// initialized successfully
	ErrStoreUnavailable = errors.New("shape store unavailable")
	// ErrCorruptRow is returned by a strict load when a stored document
	// cannot be decoded
	ErrCorruptRow = errors.New("corrupt shape row")
	// ErrMalformedCollection is returned for input rejected before any
	// write happens
	ErrMalformedCollection = validation.ErrMalformedCollection
)

// LoadPolicy decides what LoadAll does with rows it cannot decode
type LoadPolicy int

const (
	// LoadSkipCorrupt drops undecodable rows and keeps loading
	LoadSkipCorrupt LoadPolicy = iota
	// LoadStrict fails the whole load on the first undecodable row
	LoadStrict
)

// ShapeStoreOptions configures a ShapeRepository
type ShapeStoreOptions struct {
	Path       string
	LoadPolicy LoadPolicy
	Logger     *log.Logger
}

// ShapeRepository is the local annotation store. It owns its database
// handle exclusively and persists the shape collection as one unit.
type ShapeRepository struct {
	opts ShapeStoreOptions
	log  *log.Logger

	// mu serializes ReplaceAll and keeps readers out while a replace is
	// in progress, so a load sees either the old or the new collection.
	mu        sync.RWMutex
	db        *sql.DB
	available bool
}

// NewShapeRepository creates a store backed by the SQLite file at
// opts.Path. Call Initialize before use.
func NewShapeRepository(opts ShapeStoreOptions) *ShapeRepository {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ShapeRepository{opts: opts, log: logger}
}

// NewShapeRepositoryWithDB wraps an already-open handle whose schema is in
// place
func NewShapeRepositoryWithDB(db *sql.DB, opts ShapeStoreOptions) *ShapeRepository {
	r := NewShapeRepository(opts)
	r.db = db
	r.available = true
	return r
}

// Initialize opens the database and creates the schema if absent. Calling
// it again on an initialized store succeeds without touching stored rows.
// On failure the store stays unavailable until a later call succeeds.
func (r *ShapeRepository) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		db, err := database.Open(database.Config{Path: r.opts.Path})
		if err != nil {
			r.available = false
			return fmt.Errorf("%w: open: %v", ErrStoreUnavailable, err)
		}
		r.db = db
	}

	if err := database.NewMigrationManager(r.db, r.log).RunMigrations(); err != nil {
		r.available = false
		_ = r.db.Close()
		r.db = nil
		return fmt.Errorf("%w: schema: %v", ErrStoreUnavailable, err)
	}

	if !r.available {
		r.log.Printf("[shapes] store ready: %s", r.opts.Path)
	}
	r.available = true
	return nil
}

// Available reports whether the store has been initialized
func (r *ShapeRepository) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available
}

// ReplaceAllJSON parses a raw collection document and replaces the stored
// collection with it. Malformed documents never open a transaction.
func (r *ShapeRepository) ReplaceAllJSON(ctx context.Context, raw []byte) error {
	shapes, err := validation.ParseShapeCollection(raw)
	if err != nil {
		return err
	}
	return r.ReplaceAll(ctx, shapes)
}

// ReplaceAll atomically substitutes the stored collection with shapes.
// Any failure rolls back and leaves the previous collection intact.
func (r *ShapeRepository) ReplaceAll(ctx context.Context, shapes models.ShapeCollection) error {
	if err := validation.CheckCollection(shapes); err != nil {
		return err
	}
	rows := make(models.ShapeCollection, 0, len(shapes))
	for _, s := range shapes {
		c, err := s.Canonical()
		if err != nil {
			return fmt.Errorf("%w: shape %q: %v", ErrMalformedCollection, s.ID, err)
		}
		rows = append(rows, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.available {
		return ErrStoreUnavailable
	}

	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_shapes`); err != nil {
			return fmt.Errorf("failed to clear shapes: %w", err)
		}
		for _, s := range rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_shapes (id, type, geometry_json, style_json) VALUES (?, ?, ?, ?)`,
				s.ID, s.Type, string(s.Geometry), string(s.Style))
			if err != nil {
				return fmt.Errorf("failed to insert shape %q: %w", s.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Printf("[shapes] replaced collection: %d shapes", len(rows))
	return nil
}

// LoadAll returns the stored collection ordered by id. An empty or
// unavailable store yields an empty collection and no error.
func (r *ShapeRepository) LoadAll(ctx context.Context) (models.ShapeCollection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shapes := models.ShapeCollection{}
	if !r.available {
		return shapes, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, geometry_json, style_json FROM user_shapes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shapes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id          string
			typ         sql.NullString
			geom, style sql.NullString
		)
		if err := rows.Scan(&id, &typ, &geom, &style); err != nil {
			return nil, fmt.Errorf("failed to scan shape: %w", err)
		}

		s, err := decodeRow(id, typ.String, geom, style)
		if err != nil {
			if r.opts.LoadPolicy == LoadStrict {
				return nil, err
			}
			r.log.Printf("[shapes] skipping row: %v", err)
			continue
		}
		shapes = append(shapes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shapes: %w", err)
	}
	return shapes, nil
}

// Count returns the number of stored shapes
func (r *ShapeRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.available {
		return 0, ErrStoreUnavailable
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_shapes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count shapes: %w", err)
	}
	return n, nil
}

// Close releases the database handle
func (r *ShapeRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.available = false
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func decodeRow(id, typ string, geom, style sql.NullString) (models.Shape, error) {
	g, err := decodeDocument(geom)
	if err != nil {
		return models.Shape{}, fmt.Errorf("%w: %q geometry: %v", ErrCorruptRow, id, err)
	}
	st, err := decodeDocument(style)
	if err != nil {
		return models.Shape{}, fmt.Errorf("%w: %q style: %v", ErrCorruptRow, id, err)
	}
	return models.Shape{ID: id, Type: typ, Geometry: g, Style: st}, nil
}

func decodeDocument(v sql.NullString) (json.RawMessage, error) {
	if !v.Valid || v.String == "" {
		return json.RawMessage("null"), nil
	}
	raw := json.RawMessage(v.String)
	if !json.Valid(raw) {
		return nil, errors.New("invalid JSON")
	}
	return raw, nil
}
