package tmdb

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "secret", Language: "es-ES"})
	require.NoError(t, err)
	return c, srv
}

func TestPopularSendsCredentialLocaleAndPage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/popular", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "es-ES", r.URL.Query().Get("language"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		w.Write([]byte(`{"page":3,"results":[{"id":1,"title":"Alien","genre_ids":[27,878]}],"total_pages":10,"total_results":200}`))
	})

	res, err := c.Popular(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, 10, res.TotalPages)
	assert.Equal(t, 200, res.TotalResults)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Alien", res.Results[0].Title)
	assert.Equal(t, []int{27, 878}, res.Results[0].GenreIDs)
	assert.Nil(t, res.Results[0].PosterPath)
}

func TestPageDefaultsToOne(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte(`{"page":1,"results":[]}`))
	})

	_, err := c.NowPlaying(context.Background(), 0)
	require.NoError(t, err)
}

func TestEndpointPaths(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/genre/movie/list":
			w.Write([]byte(`{"genres":[{"id":28,"name":"Acción"}]}`))
		case "/movie/603":
			w.Write([]byte(`{"id":603,"title":"The Matrix","genres":[{"id":28,"name":"Acción"}],"runtime":136}`))
		default:
			w.Write([]byte(`{"page":1,"results":[]}`))
		}
	})
	ctx := context.Background()

	_, err := c.Upcoming(ctx, 1)
	require.NoError(t, err)
	_, err = c.SearchMovies(ctx, "matrix reloaded", 2)
	require.NoError(t, err)

	movie, err := c.MovieDetails(ctx, 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 136, movie.Runtime)
	require.Len(t, movie.Genres, 1)

	genres, err := c.Genres(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acción", genres.Genres[0].Name)

	assert.Equal(t, []string{"/movie/upcoming", "/search/movie", "/movie/603", "/genre/movie/list"}, paths)
}

func TestSearchSendsQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "matrix reloaded", r.URL.Query().Get("query"))
		w.Write([]byte(`{"page":1,"results":[]}`))
	})

	_, err := c.SearchMovies(context.Background(), "matrix reloaded", 1)
	require.NoError(t, err)
}

func TestBaseURLWithPathPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/movie/popular", r.URL.Path)
		w.Write([]byte(`{"page":1,"results":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL + "/3"})
	require.NoError(t, err)
	_, err = c.Popular(context.Background(), 1)
	require.NoError(t, err)
}

func TestNonSuccessStatusCarriesServerMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key.","success":false}`))
	})

	_, err := c.Popular(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsRequestError(err))

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	assert.Equal(t, "Invalid API key: You must be granted a valid key.", reqErr.Message)
}

func TestNonSuccessStatusWithoutBodyUsesStatusText(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.MovieDetails(context.Background(), 999)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 404, reqErr.StatusCode)
	assert.Equal(t, "Not Found", reqErr.Message)
	assert.Equal(t, "request failed: 404 - Not Found", reqErr.Error())
}

func TestDecodeFailureIsRequestError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Popular(context.Background(), 1)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusOK, reqErr.StatusCode)
	assert.Contains(t, reqErr.Message, "decode response")
}

func TestAbsentBodyIsRequestError(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "null": "null"} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			movie, err := c.MovieDetails(context.Background(), 1)
			assert.Nil(t, movie)
			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, "empty response body", reqErr.Message)
		})
	}
}

func TestTransportFailureIsNotRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := NewClient(Options{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	srv.Close()

	_, err = c.Popular(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, IsRequestError(err))
	assert.NotContains(t, err.Error(), "secret")
}

func TestTimeoutIsTransportFailure(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Popular(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, IsRequestError(err))
}

func TestCancelledContextAbandonsRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Popular(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterThrottles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":1,"results":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Popular(context.Background(), 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNewClientRejectsRelativeBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "api/3"})
	assert.Error(t, err)
}

func TestRequestsLogUnderComponent(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, "development", false)
	t.Cleanup(func() { logger.Init("production", false) })

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":1,"results":[],"total_pages":0,"total_results":0}`))
	})
	_, err := c.Popular(context.Background(), 1)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "component=tmdb")
	assert.Contains(t, out, "status=200")
	assert.NotContains(t, out, "secret")
}
