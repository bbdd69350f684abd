package repository

import (
	"context"
	"fmt"

	"github.com/bryan-buckman/marquee/internal/model"
)

// --- Favorites ---

// FavoritesList streams the favorites as Movies, re-emitting on every store
// change. It never reports an error: an empty store yields an empty slice.
// The channel closes when ctx is done.
func (r *Repository) FavoritesList(ctx context.Context) <-chan []model.Movie {
	records := r.favorites.List(ctx)
	out := make(chan []model.Movie)

	go func() {
		defer close(out)
		for {
			select {
			case recs, ok := <-records:
				if !ok {
					return
				}
				select {
				case out <- model.MoviesFromFavorites(recs):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Favorites reads the current favorites once. Unlike FavoritesList it
// reports store failures.
func (r *Repository) Favorites(ctx context.Context) ([]model.Movie, error) {
	recs, err := r.favorites.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return model.MoviesFromFavorites(recs), nil
}

// AddToFavorite stores the persisted subset of movie, replacing any earlier
// copy. Store failures are returned.
func (r *Repository) AddToFavorite(ctx context.Context, movie model.Movie) error {
	if err := r.favorites.Upsert(ctx, model.FavoriteFromMovie(movie)); err != nil {
		return fmt.Errorf("add favorite %d: %w", movie.ID, err)
	}
	return nil
}

// RemoveFromFavorite deletes the favorite. Removing an absent id is a no-op.
func (r *Repository) RemoveFromFavorite(ctx context.Context, movieID int) error {
	if err := r.favorites.DeleteByID(ctx, movieID); err != nil {
		return fmt.Errorf("remove favorite %d: %w", movieID, err)
	}
	return nil
}

// IsFavorite checks the store directly rather than the live list.
func (r *Repository) IsFavorite(ctx context.Context, movieID int) (bool, error) {
	rec, err := r.favorites.Get(ctx, movieID)
	if err != nil {
		return false, fmt.Errorf("check favorite %d: %w", movieID, err)
	}
	return rec != nil, nil
}

// ToggleFavorite removes movie if it is a favorite and adds it otherwise.
// It returns the favorite state after the change, or the unchanged state on error.
func (r *Repository) ToggleFavorite(ctx context.Context, movie model.Movie) (bool, error) {
	fav, err := r.IsFavorite(ctx, movie.ID)
	if err != nil {
		return false, err
	}
	if fav {
		if err := r.RemoveFromFavorite(ctx, movie.ID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := r.AddToFavorite(ctx, movie); err != nil {
		return false, err
	}
	return true, nil
}
