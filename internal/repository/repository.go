// Package repository turns catalog queries into Loading/Success/Error streams
// and owns the favorites operations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/model"
	"github.com/bryan-buckman/marquee/internal/result"
	"github.com/bryan-buckman/marquee/internal/tmdb"
)

// Messages carried by Error results. They are shown to the user as is.
const (
	MsgNoMoviesFound = "no movies found"
	MsgMovieNotFound = "movie not found"
	MsgSearchFailed  = "search failed"
	MsgGenresFailed  = "failed to load genres"
	MsgDetailsFailed = "failed to load movie"
	MsgNetworkError  = "network error"
)

const defaultIOParallel = 8

// Catalog is the remote movie catalog. *tmdb.Client satisfies it.
type Catalog interface {
	Popular(ctx context.Context, page int) (*model.PageResponse, error)
	NowPlaying(ctx context.Context, page int) (*model.PageResponse, error)
	Upcoming(ctx context.Context, page int) (*model.PageResponse, error)
	SearchMovies(ctx context.Context, query string, page int) (*model.PageResponse, error)
	MovieDetails(ctx context.Context, movieID int) (*model.Movie, error)
	Genres(ctx context.Context) (*model.GenreList, error)
}

// FavoritesStore is the local favorites persistence. *database.Favorites satisfies it.
type FavoritesStore interface {
	List(ctx context.Context) <-chan []model.FavoriteRecord
	Records(ctx context.Context) ([]model.FavoriteRecord, error)
	Get(ctx context.Context, id int) (*model.FavoriteRecord, error)
	Upsert(ctx context.Context, rec model.FavoriteRecord) error
	DeleteByID(ctx context.Context, id int) error
}

// Option configures a Repository.
type Option func(*Repository)

// WithIOConcurrency bounds the number of remote calls in flight at once.
func WithIOConcurrency(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.ioSlots = make(chan struct{}, n)
		}
	}
}

// Repository composes the catalog client and the favorites store. Remote
// responses are never cached: every stream performs a fresh request.
type Repository struct {
	catalog   Catalog
	favorites FavoritesStore
	ioSlots   chan struct{}
}

// New builds a Repository around explicitly owned collaborators.
func New(catalog Catalog, favorites FavoritesStore, opts ...Option) *Repository {
	r := &Repository{
		catalog:   catalog,
		favorites: favorites,
		ioSlots:   make(chan struct{}, defaultIOParallel),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// --- Remote Streams ---

// PopularMovies streams Loading followed by the page or an Error.
func (r *Repository) PopularMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse] {
	return stream(ctx, r.ioSlots, func(ctx context.Context) (*model.PageResponse, error) {
		return r.catalog.Popular(ctx, page)
	}, pageOutcome())
}

// NowPlayingMovies streams Loading followed by the page or an Error.
func (r *Repository) NowPlayingMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse] {
	return stream(ctx, r.ioSlots, func(ctx context.Context) (*model.PageResponse, error) {
		return r.catalog.NowPlaying(ctx, page)
	}, pageOutcome())
}

// UpcomingMovies streams Loading followed by the page or an Error.
func (r *Repository) UpcomingMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse] {
	return stream(ctx, r.ioSlots, func(ctx context.Context) (*model.PageResponse, error) {
		return r.catalog.Upcoming(ctx, page)
	}, pageOutcome())
}

// SearchMovies streams Loading followed by the matches or an Error. A
// successful response with no results is reported as Error(MsgNoMoviesFound).
// A blank query makes no request and yields an empty Success right away.
func (r *Repository) SearchMovies(ctx context.Context, query string, page int) <-chan result.Result[model.PageResponse] {
	if strings.TrimSpace(query) == "" {
		out := make(chan result.Result[model.PageResponse], 2)
		out <- result.Loading[model.PageResponse]()
		out <- result.Success(model.EmptyPage())
		close(out)
		return out
	}
	return stream(ctx, r.ioSlots, func(ctx context.Context) (*model.PageResponse, error) {
		return r.catalog.SearchMovies(ctx, query, page)
	}, func(page *model.PageResponse, err error) result.Result[model.PageResponse] {
		if err != nil {
			return result.Error[model.PageResponse](failureMessage(err, func(reqErr *tmdb.RequestError) string {
				return MsgSearchFailed + ": " + statusText(reqErr)
			}, MsgNetworkError))
		}
		if len(page.Results) == 0 {
			return result.Error[model.PageResponse](MsgNoMoviesFound)
		}
		return result.Success(*page)
	})
}

// MovieDetails streams Loading followed by the movie or an Error.
func (r *Repository) MovieDetails(ctx context.Context, movieID int) <-chan result.Result[model.Movie] {
	return stream(ctx, r.ioSlots, func(ctx context.Context) (*model.Movie, error) {
		return r.catalog.MovieDetails(ctx, movieID)
	}, func(movie *model.Movie, err error) result.Result[model.Movie] {
		if err != nil {
			return result.Error[model.Movie](failureMessage(err, func(*tmdb.RequestError) string {
				return MsgMovieNotFound
			}, MsgDetailsFailed))
		}
		return result.Success(*movie)
	})
}

// Genres streams Loading followed by the genre list or an Error.
func (r *Repository) Genres(ctx context.Context) <-chan result.Result[[]model.Genre] {
	return stream(ctx, r.ioSlots, func(ctx context.Context) (*model.GenreList, error) {
		return r.catalog.Genres(ctx)
	}, func(list *model.GenreList, err error) result.Result[[]model.Genre] {
		if err != nil {
			return result.Error[[]model.Genre](failureMessage(err, func(reqErr *tmdb.RequestError) string {
				return MsgGenresFailed + ": " + statusText(reqErr)
			}, MsgNetworkError))
		}
		genres := list.Genres
		if genres == nil {
			genres = []model.Genre{}
		}
		return result.Success(genres)
	})
}

// stream runs call on its own goroutine and emits Loading then exactly one
// terminal value. Once ctx is done nothing more is delivered; the in-flight
// request sees the same ctx and is abandoned.
func stream[R, T any](
	ctx context.Context,
	slots chan struct{},
	call func(context.Context) (*R, error),
	outcome func(*R, error) result.Result[T],
) <-chan result.Result[T] {
	out := make(chan result.Result[T], 2)
	out <- result.Loading[T]()

	go func() {
		defer close(out)

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		v, err := call(ctx)
		<-slots

		if ctx.Err() != nil {
			return
		}
		if err == nil && v == nil {
			err = &tmdb.RequestError{Message: "empty response body"}
		}
		out <- outcome(v, err)
	}()
	return out
}

func pageOutcome() func(*model.PageResponse, error) result.Result[model.PageResponse] {
	return func(page *model.PageResponse, err error) result.Result[model.PageResponse] {
		if err != nil {
			return result.Error[model.PageResponse](failureMessage(err, func(reqErr *tmdb.RequestError) string {
				return "error: " + statusText(reqErr)
			}, MsgNetworkError))
		}
		return result.Success(*page)
	}
}

// failureMessage turns a client error into display text. Server-side
// failures go through describe; transport failures keep their own text.
func failureMessage(err error, describe func(*tmdb.RequestError) string, fallback string) string {
	var reqErr *tmdb.RequestError
	if errors.As(err, &reqErr) {
		return describe(reqErr)
	}
	logger.With("component", "repository").Debug("transport failure", "error", err)
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

func statusText(reqErr *tmdb.RequestError) string {
	return fmt.Sprintf("%d - %s", reqErr.StatusCode, reqErr.Message)
}
