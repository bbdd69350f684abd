// Package database provides storage backends for the favorites list.
package database

import (
	"context"
	"errors"

	"github.com/bryan-buckman/marquee/internal/model"
)

// SchemaVersion is the version of the favorite_movies schema. No migrations exist yet.
const SchemaVersion = 1

// ErrNotFound is returned by GetFavorite when no record has the requested id.
var ErrNotFound = errors.New("favorite not found")

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// ListFavorites returns every record ordered by title ascending.
	ListFavorites(ctx context.Context) ([]model.FavoriteRecord, error)
	// GetFavorite returns ErrNotFound when the id is absent.
	GetFavorite(ctx context.Context, id int) (*model.FavoriteRecord, error)
	// UpsertFavorite inserts the record or replaces every column of an existing one.
	UpsertFavorite(ctx context.Context, rec model.FavoriteRecord) error
	// DeleteFavorite removes the record if present. Absent ids are not an error.
	DeleteFavorite(ctx context.Context, id int) error
}

// Open picks a backend by driver name ("sqlite" or "postgres").
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return New(dsn)
	case "postgres":
		return NewPostgres(dsn)
	default:
		return nil, errors.New("unknown database driver: " + driver)
	}
}
