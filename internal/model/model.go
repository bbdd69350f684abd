// Package model defines shared data structures.
package model

// Movie is a catalog entry as returned by the list, search and detail endpoints.
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       *string `json:"poster_path"`   // nullable
	BackdropPath     *string `json:"backdrop_path"` // nullable
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int   `json:"genre_ids"`
	Adult            bool    `json:"adult"`
	OriginalLanguage string  `json:"original_language"`
	OriginalTitle    string  `json:"original_title"`
	Popularity       float64 `json:"popularity"`
	Video            bool    `json:"video"`

	// Only present on detail responses.
	Genres  []Genre `json:"genres,omitempty"`
	Runtime int     `json:"runtime,omitempty"`
}

// PageResponse is one page of a paginated movie listing. Pages are 1-based.
type PageResponse struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// EmptyPage is the page used when no request is made (blank search).
func EmptyPage() PageResponse {
	return PageResponse{Results: []Movie{}}
}

// Genre is a catalog genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreList wraps genre/movie/list.
type GenreList struct {
	Genres []Genre `json:"genres"`
}

// FavoriteRecord is the persisted subset of a Movie.
type FavoriteRecord struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// DefaultOriginalLanguage fills Movie.OriginalLanguage for movies rebuilt from favorites.
const DefaultOriginalLanguage = "es"

// FavoriteFromMovie keeps the fields needed to render a favorites list.
func FavoriteFromMovie(m Movie) FavoriteRecord {
	return FavoriteRecord{
		ID:          m.ID,
		Title:       m.Title,
		Overview:    m.Overview,
		PosterPath:  m.PosterPath,
		ReleaseDate: m.ReleaseDate,
		VoteAverage: m.VoteAverage,
		VoteCount:   m.VoteCount,
	}
}

// Movie rebuilds a Movie from the record. Fields that are not stored get
// their zero defaults, so the round trip is lossy.
func (f FavoriteRecord) Movie() Movie {
	return Movie{
		ID:               f.ID,
		Title:            f.Title,
		Overview:         f.Overview,
		PosterPath:       f.PosterPath,
		BackdropPath:     nil,
		ReleaseDate:      f.ReleaseDate,
		VoteAverage:      f.VoteAverage,
		VoteCount:        f.VoteCount,
		GenreIDs:         []int{},
		Adult:            false,
		OriginalLanguage: DefaultOriginalLanguage,
		OriginalTitle:    f.Title,
		Popularity:       0,
		Video:            false,
	}
}

// MoviesFromFavorites projects records in order.
func MoviesFromFavorites(records []FavoriteRecord) []Movie {
	movies := make([]Movie, 0, len(records))
	for _, r := range records {
		movies = append(movies, r.Movie())
	}
	return movies
}
