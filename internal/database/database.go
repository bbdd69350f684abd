// Package database provides SQLite storage for the favorites list.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bryan-buckman/marquee/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
// ":memory:" gives a private in-memory database.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers, so single-row upserts and deletes
	// are linearizable. It also keeps ":memory:" on one database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set wal mode: %w", err)
		}
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS favorite_movies (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		overview TEXT NOT NULL DEFAULT '',
		poster_path TEXT,
		release_date TEXT NOT NULL DEFAULT '',
		vote_average REAL NOT NULL DEFAULT 0,
		vote_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_favorite_movies_title ON favorite_movies(title);
	PRAGMA user_version = %d;
	`, SchemaVersion)
	_, err := db.conn.Exec(schema)
	return err
}

// SchemaVersion reads back the schema version stamped by migrate.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// --- Favorite Methods ---

// ListFavorites returns all favorites ordered by title.
func (db *DB) ListFavorites(ctx context.Context) ([]model.FavoriteRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, overview, poster_path, release_date, vote_average, vote_count
		FROM favorite_movies ORDER BY title ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()
	return scanFavorites(rows)
}

// GetFavorite returns one favorite by movie id.
func (db *DB) GetFavorite(ctx context.Context, id int) (*model.FavoriteRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, overview, poster_path, release_date, vote_average, vote_count
		FROM favorite_movies WHERE id = ?`, id)
	rec, err := scanFavorite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query favorite id=%d: %w", id, err)
	}
	return rec, nil
}

// UpsertFavorite inserts a favorite, replacing any row with the same id.
func (db *DB) UpsertFavorite(ctx context.Context, rec model.FavoriteRecord) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO favorite_movies (id, title, overview, poster_path, release_date, vote_average, vote_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			overview = excluded.overview,
			poster_path = excluded.poster_path,
			release_date = excluded.release_date,
			vote_average = excluded.vote_average,
			vote_count = excluded.vote_count`,
		rec.ID, rec.Title, rec.Overview, nullString(rec.PosterPath), rec.ReleaseDate, rec.VoteAverage, rec.VoteCount)
	if err != nil {
		return fmt.Errorf("upsert favorite id=%d: %w", rec.ID, err)
	}
	return nil
}

// DeleteFavorite removes a favorite by movie id.
func (db *DB) DeleteFavorite(ctx context.Context, id int) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM favorite_movies WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete favorite id=%d: %w", id, err)
	}
	return nil
}

// --- Helper functions ---

type scanner interface {
	Scan(dest ...any) error
}

func scanFavorite(s scanner) (*model.FavoriteRecord, error) {
	var f model.FavoriteRecord
	var posterPath sql.NullString
	if err := s.Scan(&f.ID, &f.Title, &f.Overview, &posterPath, &f.ReleaseDate, &f.VoteAverage, &f.VoteCount); err != nil {
		return nil, err
	}
	if posterPath.Valid {
		p := posterPath.String
		f.PosterPath = &p
	}
	return &f, nil
}

func scanFavorites(rows *sql.Rows) ([]model.FavoriteRecord, error) {
	favorites := []model.FavoriteRecord{}
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return favorites, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
