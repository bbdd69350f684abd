package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bryan-buckman/marquee/internal/backup"
	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/model"
	"github.com/bryan-buckman/marquee/internal/result"
)

// maxImportSize caps import bodies, multipart or raw.
var maxImportSize int64 = 10 << 20

// currentFavorites reads the favorites once. Store failures are returned,
// which the live list cannot do.
func (s *Server) currentFavorites(ctx context.Context) ([]model.Movie, error) {
	return s.repo.Favorites(ctx)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	movies, err := s.currentFavorites(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		logger.Error("server: list favorites failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to list favorites")
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

// handleFavoritesStream sends one "favorites" event per change until the
// client disconnects. The store is read once up front so a broken store is
// reported as 500 instead of an idle stream.
func (s *Server) handleFavoritesStream(w http.ResponseWriter, r *http.Request) {
	if _, err := s.currentFavorites(r.Context()); err != nil {
		if r.Context().Err() != nil {
			return
		}
		logger.Error("server: favorites stream failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to list favorites")
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Warn("server: streaming unsupported", "error", err)
		return
	}

	for movies := range s.repo.FavoritesList(r.Context()) {
		data, err := json.Marshal(movies)
		if err != nil {
			logger.Error("server: encode favorites event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: favorites\ndata: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var movie model.Movie
	if err := json.NewDecoder(r.Body).Decode(&movie); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid movie")
		return
	}
	if movie.ID < 1 || strings.TrimSpace(movie.Title) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Movie id and title are required")
		return
	}
	if err := s.movies.AddToFavorites(r.Context(), movie); err != nil {
		logger.Error("server: add favorite failed", "movie_id", movie.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to add favorite")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "id": movie.ID, "is_favorite": true})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := movieIDParam(w, r)
	if !ok {
		return
	}
	if err := s.movies.RemoveFromFavorites(r.Context(), id); err != nil {
		logger.Error("server: remove favorite failed", "movie_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to remove favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id, "is_favorite": false})
}

// handleToggleFavorite flips the favorite state of a movie. The body may
// carry the movie; otherwise its details are fetched before adding.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	movie := model.Movie{ID: id}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Unreadable body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &movie); err != nil || movie.ID != id {
			writeError(w, http.StatusBadRequest, "invalid_request", "Body must be the movie being toggled")
			return
		}
	}

	fav, err := s.movies.IsFavorite(r.Context(), id)
	if err != nil {
		logger.Error("server: favorite lookup failed", "movie_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to read favorites")
		return
	}
	if !fav && movie.Title == "" {
		details, ok := result.Drain(s.repo.MovieDetails(r.Context(), id))
		if !ok {
			return
		}
		if details.IsError() {
			writeJSON(w, http.StatusOK, movieResponse{Movie: details, IsFavorite: false})
			return
		}
		movie = details.Data
	}

	now, err := s.movies.ToggleFavorite(r.Context(), movie)
	if err != nil {
		logger.Error("server: toggle favorite failed", "movie_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to update favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id, "is_favorite": now})
}

func (s *Server) handleExportFavorites(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := backup.Export(r.Context(), s.favorites, &buf); err != nil {
		logger.Error("server: export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to export favorites")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=marquee-favorites.json")
	w.Write(buf.Bytes())
}

// handleImportFavorites accepts the backup either as a multipart file named
// "backup" or as the raw request body.
func (s *Server) handleImportFavorites(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("backup")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "too_large", "Backup exceeds size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_request", "No file provided")
			return
		}
		defer file.Close()
		src = file
	}

	doc, err := backup.Parse(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_backup", fmt.Sprintf("Failed to parse backup: %v", err))
		return
	}
	imported, err := backup.Restore(r.Context(), s.favorites, doc)
	if err != nil {
		logger.Error("server: import failed", "imported", imported, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "Failed to import favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imported": imported,
		"total":    len(doc.Favorites),
	})
}
