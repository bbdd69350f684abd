package presenter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryan-buckman/marquee/internal/model"
	"github.com/bryan-buckman/marquee/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type pageStream = func() <-chan result.Result[model.PageResponse]

type movieStream = func() <-chan result.Result[model.Movie]

type mockRepo struct {
	mock.Mock
	popularCalls atomic.Int32
}

func (m *mockRepo) PopularMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse] {
	m.popularCalls.Add(1)
	return m.Called(ctx, page).Get(0).(pageStream)()
}

func (m *mockRepo) NowPlayingMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse] {
	return m.Called(ctx, page).Get(0).(pageStream)()
}

func (m *mockRepo) UpcomingMovies(ctx context.Context, page int) <-chan result.Result[model.PageResponse] {
	return m.Called(ctx, page).Get(0).(pageStream)()
}

func (m *mockRepo) SearchMovies(ctx context.Context, query string, page int) <-chan result.Result[model.PageResponse] {
	return m.Called(ctx, query, page).Get(0).(pageStream)()
}

func (m *mockRepo) MovieDetails(ctx context.Context, movieID int) <-chan result.Result[model.Movie] {
	return m.Called(ctx, movieID).Get(0).(movieStream)()
}

// FavoritesList emits the configured slice once and stays open until ctx ends.
func (m *mockRepo) FavoritesList(ctx context.Context) <-chan []model.Movie {
	movies := m.Called(ctx).Get(0).([]model.Movie)
	out := make(chan []model.Movie, 1)
	out <- movies
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

func (m *mockRepo) AddToFavorite(ctx context.Context, movie model.Movie) error {
	return m.Called(ctx, movie).Error(0)
}

func (m *mockRepo) RemoveFromFavorite(ctx context.Context, movieID int) error {
	return m.Called(ctx, movieID).Error(0)
}

func (m *mockRepo) IsFavorite(ctx context.Context, movieID int) (bool, error) {
	args := m.Called(ctx, movieID)
	return args.Bool(0), args.Error(1)
}

func pages(rs ...result.Result[model.PageResponse]) pageStream {
	return func() <-chan result.Result[model.PageResponse] {
		ch := make(chan result.Result[model.PageResponse], len(rs))
		for _, r := range rs {
			ch <- r
		}
		close(ch)
		return ch
	}
}

func page(ids ...int) result.Result[model.PageResponse] {
	p := model.PageResponse{Page: 1, Results: []model.Movie{}}
	for _, id := range ids {
		p.Results = append(p.Results, model.Movie{ID: id})
	}
	return result.Success(p)
}

func loading() result.Result[model.PageResponse] { return result.Loading[model.PageResponse]() }

// newRepo stubs the subscriptions New starts.
func newRepo(favorites []model.Movie) *mockRepo {
	repo := new(mockRepo)
	repo.On("PopularMovies", mock.Anything, 1).Return(pages(loading(), page(1, 2)))
	repo.On("NowPlayingMovies", mock.Anything, 1).Return(pages(loading(), page(3)))
	repo.On("FavoritesList", mock.Anything).Return(favorites)
	return repo
}

func newMovies(t *testing.T, repo *mockRepo) *Movies {
	t.Helper()
	m := New(repo)
	t.Cleanup(m.Close)
	return m
}

func TestNewLoadsHomeSlots(t *testing.T) {
	repo := newRepo([]model.Movie{{ID: 7, Title: "Heat"}})
	m := newMovies(t, repo)

	assert.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Popular.IsSuccess() && s.NowPlaying.IsSuccess() && len(s.Favorites) == 1
	}, waitFor, tick)

	s := m.Snapshot()
	assert.Len(t, s.Popular.Data.Results, 2)
	assert.Equal(t, 3, s.NowPlaying.Data.Results[0].ID)
	assert.True(t, s.Upcoming.IsLoading())
	assert.True(t, s.Details.IsLoading())
}

func TestLoadUpcoming(t *testing.T) {
	repo := newRepo(nil)
	repo.On("UpcomingMovies", mock.Anything, 2).Return(pages(loading(), result.Error[model.PageResponse]("error: 500 - boom")))
	m := newMovies(t, repo)

	m.LoadUpcoming(2)
	assert.Eventually(t, func() bool { return m.Snapshot().Upcoming.IsError() }, waitFor, tick)
	assert.Equal(t, "error: 500 - boom", m.Snapshot().Upcoming.Message)
}

func TestBlankSearchIsSynchronousAndOffline(t *testing.T) {
	repo := newRepo(nil)
	m := newMovies(t, repo)

	m.Search("   ")

	s := m.Snapshot()
	assert.Equal(t, "   ", s.Query)
	require.True(t, s.Search.IsSuccess())
	assert.Empty(t, s.Search.Data.Results)
	repo.AssertNotCalled(t, "SearchMovies", mock.Anything, mock.Anything, mock.Anything)
}

func TestStaleSearchCannotOverwriteNewer(t *testing.T) {
	repo := newRepo(nil)
	slow := make(chan result.Result[model.PageResponse])
	repo.On("SearchMovies", mock.Anything, "al", 1).Return(pageStream(func() <-chan result.Result[model.PageResponse] { return slow }))
	repo.On("SearchMovies", mock.Anything, "alien", 1).Return(pages(loading(), page(348)))
	m := newMovies(t, repo)

	m.Search("al")
	m.Search("alien")
	assert.Eventually(t, func() bool { return m.Snapshot().Search.IsSuccess() }, waitFor, tick)

	// The replaced subscription finishing late must be ignored.
	slow <- result.Error[model.PageResponse]("no movies found")
	close(slow)

	s := m.Snapshot()
	assert.Equal(t, "alien", s.Query)
	require.True(t, s.Search.IsSuccess())
	assert.Equal(t, 348, s.Search.Data.Results[0].ID)
}

func TestLoadDetailsTracksFavoriteFlag(t *testing.T) {
	repo := newRepo(nil)
	repo.On("MovieDetails", mock.Anything, 603).Return(movieStream(func() <-chan result.Result[model.Movie] {
		ch := make(chan result.Result[model.Movie], 2)
		ch <- result.Loading[model.Movie]()
		ch <- result.Success(model.Movie{ID: 603, Title: "The Matrix"})
		close(ch)
		return ch
	}))
	repo.On("IsFavorite", mock.Anything, 603).Return(true, nil)
	m := newMovies(t, repo)

	m.LoadDetails(603)
	assert.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Details.IsSuccess() && s.DetailFavorite
	}, waitFor, tick)
	assert.Equal(t, "The Matrix", m.Snapshot().Details.Data.Title)
}

func TestToggleFavoriteAddsAndReloadsList(t *testing.T) {
	repo := newRepo(nil)
	movie := model.Movie{ID: 9, Title: "Alien"}
	repo.On("IsFavorite", mock.Anything, 9).Return(false, nil)
	repo.On("AddToFavorite", mock.Anything, movie).Return(nil)
	m := newMovies(t, repo)

	fav, err := m.ToggleFavorite(context.Background(), movie)
	require.NoError(t, err)
	assert.True(t, fav)

	repo.AssertCalled(t, "AddToFavorite", mock.Anything, movie)
	repo.AssertNumberOfCalls(t, "FavoritesList", 2)
}

func TestToggleFavoriteRemoves(t *testing.T) {
	repo := newRepo(nil)
	repo.On("IsFavorite", mock.Anything, 9).Return(true, nil)
	repo.On("RemoveFromFavorite", mock.Anything, 9).Return(nil)
	m := newMovies(t, repo)

	fav, err := m.ToggleFavorite(context.Background(), model.Movie{ID: 9})
	require.NoError(t, err)
	assert.False(t, fav)
	repo.AssertCalled(t, "RemoveFromFavorite", mock.Anything, 9)
}

func TestAddFailureIsReturned(t *testing.T) {
	repo := newRepo(nil)
	boom := errors.New("disk full")
	repo.On("AddToFavorite", mock.Anything, mock.Anything).Return(boom)
	m := newMovies(t, repo)

	err := m.AddToFavorites(context.Background(), model.Movie{ID: 1})
	assert.ErrorIs(t, err, boom)
	repo.AssertNumberOfCalls(t, "FavoritesList", 1)
}

func TestAutoRefreshReloads(t *testing.T) {
	repo := newRepo(nil)
	m := newMovies(t, repo)

	m.StartAutoRefresh(10 * time.Millisecond)
	assert.Eventually(t, func() bool { return repo.popularCalls.Load() >= 3 }, waitFor, tick)

	m.StartAutoRefresh(0)
}

func TestIntentsAfterCloseAreIgnored(t *testing.T) {
	repo := newRepo(nil)
	m := New(repo)
	m.Close()

	m.LoadUpcoming(1)
	m.Search("alien")
	repo.AssertNotCalled(t, "UpcomingMovies", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SearchMovies", mock.Anything, mock.Anything, mock.Anything)

	// Second Close is a no-op.
	m.Close()
}
