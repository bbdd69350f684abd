// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bryan-buckman/marquee/internal/database"
	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/model"
	"github.com/bryan-buckman/marquee/internal/presenter"
	"github.com/bryan-buckman/marquee/internal/repository"
	"github.com/bryan-buckman/marquee/internal/result"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// Server is the main HTTP server.
type Server struct {
	repo      *repository.Repository
	favorites *database.Favorites
	movies    *presenter.Movies
	router    chi.Router

	mu   sync.Mutex
	http *http.Server
}

// New creates a new server. The caller owns every collaborator.
func New(repo *repository.Repository, favorites *database.Favorites, movies *presenter.Movies) *Server {
	s := &Server{
		repo:      repo,
		favorites: favorites,
		movies:    movies,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/movies/popular", s.handlePopular)
		r.Get("/movies/now-playing", s.handleNowPlaying)
		r.Get("/movies/upcoming", s.handleUpcoming)
		r.Get("/movies/{movieID}", s.handleMovie)
		r.Get("/search", s.handleSearch)
		r.Get("/genres", s.handleGenres)
		r.Get("/home", s.handleHome)

		r.Get("/favorites", s.handleListFavorites)
		r.Post("/favorites", s.handleAddFavorite)
		r.Get("/favorites/stream", s.handleFavoritesStream)
		r.Get("/favorites/export", s.handleExportFavorites)
		r.Post("/favorites/import", s.handleImportFavorites)
		r.Delete("/favorites/{movieID}", s.handleRemoveFavorite)
		r.Post("/favorites/{movieID}/toggle", s.handleToggleFavorite)

		r.Get("/state", s.handleState)
		r.Post("/refresh", s.handleRefresh)
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	// Favorites streams never finish on their own.
	hs.RegisterOnShutdown(cancel)
	s.mu.Lock()
	s.http = hs
	s.mu.Unlock()

	logger.Info("server starting", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels request contexts and waits for
// active handlers until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.http
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}

// --- Catalog Handlers ---

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	writeResult(w, r, s.repo.PopularMovies(r.Context(), page))
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	writeResult(w, r, s.repo.NowPlayingMovies(r.Context(), page))
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	writeResult(w, r, s.repo.UpcomingMovies(r.Context(), page))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	writeResult(w, r, s.repo.SearchMovies(r.Context(), r.URL.Query().Get("q"), page))
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, s.repo.Genres(r.Context()))
}

type movieResponse struct {
	Movie      result.Result[model.Movie] `json:"movie"`
	IsFavorite bool                       `json:"is_favorite"`
}

func (s *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := movieIDParam(w, r)
	if !ok {
		return
	}
	movie, ok := result.Drain(s.repo.MovieDetails(r.Context(), id))
	if !ok {
		return
	}
	fav, err := s.repo.IsFavorite(r.Context(), id)
	if err != nil {
		logger.Error("server: favorite lookup failed", "movie_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to read favorites")
		return
	}
	writeJSON(w, http.StatusOK, movieResponse{Movie: movie, IsFavorite: fav})
}

type homeResponse struct {
	Popular    result.Result[model.PageResponse] `json:"popular"`
	NowPlaying result.Result[model.PageResponse] `json:"now_playing"`
	Favorites  []model.Movie                     `json:"favorites"`
}

// handleHome gathers the home screen in parallel.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	var home homeResponse
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		var ok bool
		if home.Popular, ok = result.Drain(s.repo.PopularMovies(ctx, 1)); !ok {
			return context.Cause(ctx)
		}
		return nil
	})
	g.Go(func() error {
		var ok bool
		if home.NowPlaying, ok = result.Drain(s.repo.NowPlayingMovies(ctx, 1)); !ok {
			return context.Cause(ctx)
		}
		return nil
	})
	g.Go(func() error {
		movies, err := s.currentFavorites(ctx)
		home.Favorites = movies
		return err
	})

	if err := g.Wait(); err != nil {
		if r.Context().Err() != nil {
			return
		}
		logger.Error("server: home failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load home")
		return
	}
	writeJSON(w, http.StatusOK, home)
}

// --- Presenter Handlers ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.movies.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.movies.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("server: write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeResult waits for the terminal value of a stream. Error results are
// display data and go out with 200. Nothing is written if the client left.
func writeResult[T any](w http.ResponseWriter, r *http.Request, stream <-chan result.Result[T]) {
	last, ok := result.Drain(stream)
	if !ok {
		logger.Debug("server: request cancelled", "path", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid page parameter")
		return 0, false
	}
	return page, true
}

func movieIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "movieID"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid movie id")
		return 0, false
	}
	return id, true
}
