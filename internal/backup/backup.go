// Package backup exports and imports favorites as a JSON document.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bryan-buckman/marquee/internal/model"
)

// Version is the document format written by Export.
const Version = 1

// Document is the root of a favorites backup.
type Document struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Favorites  []model.FavoriteRecord `json:"favorites"`
}

// Store is what Import and Export need from the favorites store.
type Store interface {
	Records(ctx context.Context) ([]model.FavoriteRecord, error)
	Upsert(ctx context.Context, rec model.FavoriteRecord) error
}

// Parse reads a backup document. Documents from an unknown version and
// records without an id are rejected.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported backup version %d", doc.Version)
	}
	for i, rec := range doc.Favorites {
		if rec.ID <= 0 {
			return nil, fmt.Errorf("favorite %d: invalid id %d", i, rec.ID)
		}
	}
	if doc.Favorites == nil {
		doc.Favorites = []model.FavoriteRecord{}
	}
	return &doc, nil
}

// Export writes every favorite to w.
func Export(ctx context.Context, store Store, w io.Writer) (int, error) {
	recs, err := store.Records(ctx)
	if err != nil {
		return 0, fmt.Errorf("list favorites: %w", err)
	}
	if recs == nil {
		recs = []model.FavoriteRecord{}
	}
	doc := Document{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		Favorites:  recs,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode backup: %w", err)
	}
	return len(recs), nil
}

// Import parses r and restores the document into store.
func Import(ctx context.Context, store Store, r io.Reader) (int, error) {
	doc, err := Parse(r)
	if err != nil {
		return 0, err
	}
	return Restore(ctx, store, doc)
}

// Restore upserts every record of doc, replacing existing rows with the same
// id. It stops at the first store failure and reports how many were written
// before it.
func Restore(ctx context.Context, store Store, doc *Document) (int, error) {
	imported := 0
	for _, rec := range doc.Favorites {
		if err := store.Upsert(ctx, rec); err != nil {
			return imported, fmt.Errorf("import favorite %d: %w", rec.ID, err)
		}
		imported++
	}
	return imported, nil
}
