// Package presenter keeps the latest value of every movie query a screen shows.
package presenter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/model"
	"github.com/bryan-buckman/marquee/internal/result"
)

// Repository is the subset of repository.Repository the presenter drives.
type Repository interface {
	PopularMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse]
	NowPlayingMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse]
	UpcomingMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse]
	SearchMovies(ctx context.Context, query string, page int) <-chan result.Result[model.PageResponse]
	MovieDetails(ctx context.Context, movieID int) <-chan result.Result[model.Movie]
	FavoritesList(ctx context.Context) <-chan []model.Movie
	AddToFavorite(ctx context.Context, movie model.Movie) error
	RemoveFromFavorite(ctx context.Context, movieID int) error
	IsFavorite(ctx context.Context, movieID int) (bool, error)
}

// State is a point-in-time copy of every slot.
type State struct {
	Popular        result.Result[model.PageResponse] `json:"popular"`
	NowPlaying     result.Result[model.PageResponse] `json:"now_playing"`
	Upcoming       result.Result[model.PageResponse] `json:"upcoming"`
	Search         result.Result[model.PageResponse] `json:"search"`
	Query          string                            `json:"query"`
	Details        result.Result[model.Movie]        `json:"details"`
	DetailFavorite bool                              `json:"detail_favorite"`
	Favorites      []model.Movie                     `json:"favorites"`
}

type slot int

const (
	slotPopular slot = iota
	slotNowPlaying
	slotUpcoming
	slotSearch
	slotDetails
	slotDetailFavorite
	slotFavorites
)

// Movies is the state holder behind the home, search, detail and favorites
// views. Every intent replaces the subscription for its slot; values from a
// replaced subscription are dropped.
type Movies struct {
	repo Repository

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	detailID int
	cancels  map[slot]context.CancelFunc
	gens     map[slot]uint64
	closed   bool

	stopRefresh chan struct{}
	refreshDone chan struct{}
}

// New builds the presenter and starts the popular, now-playing and favorites
// subscriptions.
func New(repo Repository) *Movies {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Movies{
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
		state: State{
			Popular:    result.Loading[model.PageResponse](),
			NowPlaying: result.Loading[model.PageResponse](),
			Upcoming:   result.Loading[model.PageResponse](),
			Search:     result.Loading[model.PageResponse](),
			Details:    result.Loading[model.Movie](),
			Favorites:  []model.Movie{},
		},
		cancels: make(map[slot]context.CancelFunc),
		gens:    make(map[slot]uint64),
	}
	m.Refresh()
	return m
}

// Snapshot returns the current state. Slices inside are shared and must not
// be modified.
func (m *Movies) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// --- Intents ---

// LoadPopular loads one page of popular movies.
func (m *Movies) LoadPopular(page int) {
	ctx, gen, ok := m.begin(slotPopular)
	if !ok {
		return
	}
	follow(m, slotPopular, gen, m.repo.PopularMovies(ctx, page), func(s *State, r result.Result[model.PageResponse]) {
		s.Popular = r
	})
}

// LoadNowPlaying loads one page of movies in theaters.
func (m *Movies) LoadNowPlaying(page int) {
	ctx, gen, ok := m.begin(slotNowPlaying)
	if !ok {
		return
	}
	follow(m, slotNowPlaying, gen, m.repo.NowPlayingMovies(ctx, page), func(s *State, r result.Result[model.PageResponse]) {
		s.NowPlaying = r
	})
}

// LoadUpcoming loads one page of upcoming releases.
func (m *Movies) LoadUpcoming(page int) {
	ctx, gen, ok := m.begin(slotUpcoming)
	if !ok {
		return
	}
	follow(m, slotUpcoming, gen, m.repo.UpcomingMovies(ctx, page), func(s *State, r result.Result[model.PageResponse]) {
		s.Upcoming = r
	})
}

// Search records query and loads its first page. A blank query clears the
// results synchronously without asking the repository.
func (m *Movies) Search(query string) {
	ctx, gen, ok := m.begin(slotSearch)
	if !ok {
		return
	}

	m.mu.Lock()
	m.state.Query = query
	if strings.TrimSpace(query) == "" {
		m.state.Search = result.Success(model.EmptyPage())
		m.mu.Unlock()
		m.wg.Done()
		return
	}
	m.mu.Unlock()

	follow(m, slotSearch, gen, m.repo.SearchMovies(ctx, query, 1), func(s *State, r result.Result[model.PageResponse]) {
		s.Search = r
	})
}

// LoadDetails loads one movie and whether it is a favorite.
func (m *Movies) LoadDetails(movieID int) {
	ctx, gen, ok := m.begin(slotDetails)
	if !ok {
		return
	}
	m.mu.Lock()
	m.detailID = movieID
	m.state.DetailFavorite = false
	m.mu.Unlock()

	follow(m, slotDetails, gen, m.repo.MovieDetails(ctx, movieID), func(s *State, r result.Result[model.Movie]) {
		s.Details = r
	})
	m.checkDetailFavorite(movieID)
}

// LoadFavorites replaces the live favorites subscription.
func (m *Movies) LoadFavorites() {
	ctx, gen, ok := m.begin(slotFavorites)
	if !ok {
		return
	}
	follow(m, slotFavorites, gen, m.repo.FavoritesList(ctx), func(s *State, movies []model.Movie) {
		s.Favorites = movies
	})
}

// AddToFavorites stores movie and re-subscribes to the favorites list.
func (m *Movies) AddToFavorites(ctx context.Context, movie model.Movie) error {
	if err := m.repo.AddToFavorite(ctx, movie); err != nil {
		return err
	}
	m.setDetailFavorite(movie.ID, true)
	m.LoadFavorites()
	return nil
}

// RemoveFromFavorites deletes the favorite and re-subscribes to the list.
func (m *Movies) RemoveFromFavorites(ctx context.Context, movieID int) error {
	if err := m.repo.RemoveFromFavorite(ctx, movieID); err != nil {
		return err
	}
	m.setDetailFavorite(movieID, false)
	m.LoadFavorites()
	return nil
}

// ToggleFavorite flips the favorite state of movie and returns the new state.
func (m *Movies) ToggleFavorite(ctx context.Context, movie model.Movie) (bool, error) {
	fav, err := m.repo.IsFavorite(ctx, movie.ID)
	if err != nil {
		return false, err
	}
	if fav {
		if err := m.RemoveFromFavorites(ctx, movie.ID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := m.AddToFavorites(ctx, movie); err != nil {
		return false, err
	}
	return true, nil
}

// IsFavorite asks the store directly, bypassing the favorites slot.
func (m *Movies) IsFavorite(ctx context.Context, movieID int) (bool, error) {
	return m.repo.IsFavorite(ctx, movieID)
}

// Refresh reloads popular, now playing and favorites.
func (m *Movies) Refresh() {
	m.LoadPopular(1)
	m.LoadNowPlaying(1)
	m.LoadFavorites()
}

// StartAutoRefresh calls Refresh every interval until Close or the next
// StartAutoRefresh. A non-positive interval only stops the running loop.
func (m *Movies) StartAutoRefresh(interval time.Duration) {
	m.stopAutoRefresh()
	if interval <= 0 {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	m.stopRefresh, m.refreshDone = stop, done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.Debug("presenter: auto refresh", "interval", interval)
				m.Refresh()
			case <-stop:
				return
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

// Close stops auto refresh, cancels every subscription and waits for them
// to finish. Intents after Close are ignored.
func (m *Movies) Close() {
	m.stopAutoRefresh()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// --- Internal ---

// begin cancels the running subscription for s and opens a new generation.
func (m *Movies) begin(s slot) (context.Context, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, 0, false
	}
	if cancel, ok := m.cancels[s]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[s] = cancel
	m.gens[s]++
	m.wg.Add(1)
	return ctx, m.gens[s], true
}

// follow applies every value from ch while gen is still current for s.
// The caller's begin has already added to the wait group.
func follow[T any](m *Movies, s slot, gen uint64, ch <-chan T, apply func(*State, T)) {
	go func() {
		defer m.wg.Done()
		for v := range ch {
			m.mu.Lock()
			if m.gens[s] == gen {
				apply(&m.state, v)
			}
			m.mu.Unlock()
		}
	}()
}

func (m *Movies) checkDetailFavorite(movieID int) {
	ctx, gen, ok := m.begin(slotDetailFavorite)
	if !ok {
		return
	}
	go func() {
		defer m.wg.Done()
		fav, err := m.repo.IsFavorite(ctx, movieID)
		if err != nil {
			logger.Warn("presenter: favorite check failed", "movie_id", movieID, "error", err)
			return
		}
		m.mu.Lock()
		if m.gens[slotDetailFavorite] == gen && m.detailID == movieID {
			m.state.DetailFavorite = fav
		}
		m.mu.Unlock()
	}()
}

func (m *Movies) setDetailFavorite(movieID int, fav bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detailID == movieID {
		// A pending check would only report the value we already know.
		m.gens[slotDetailFavorite]++
		m.state.DetailFavorite = fav
	}
}

func (m *Movies) stopAutoRefresh() {
	m.mu.Lock()
	stop, done := m.stopRefresh, m.refreshDone
	m.stopRefresh, m.refreshDone = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
