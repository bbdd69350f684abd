// Package tmdb provides a typed client for the TMDB v3 movie catalog API.
package tmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/model"
	"golang.org/x/time/rate"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultBaseURL  = "https://api.themoviedb.org/3/"
	DefaultLanguage = "es-ES"
	DefaultTimeout  = 30 * time.Second
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// RequestError is returned when the server answered but the answer is not
// usable: a non-2xx status, an undecodable body, or an absent body.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %d - %s", e.StatusCode, e.Message)
}

// IsRequestError reports whether err is (or wraps) a *RequestError.
func IsRequestError(err error) bool {
	var target *RequestError
	return errors.As(err, &target)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero disables the limiter.
	RequestsPerSecond float64
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client performs one GET per call. It keeps no state between requests
// besides its configuration and the limiter.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
	language   string
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient builds a client. The base URL must be absolute.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", opts.BaseURL)
	}
	// Relative endpoint paths resolve under the base only with a trailing slash.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(opts.Timeout)
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     opts.APIKey,
		language:   opts.Language,
		log:        logger.With("component", "tmdb"),
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

// newHTTPClient bounds connect, handshake, header wait and the whole exchange.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport, Timeout: timeout}
}

// --- Listing Methods ---

// Popular fetches movie/popular.
func (c *Client) Popular(ctx context.Context, page int) (*model.PageResponse, error) {
	return c.page(ctx, "movie/popular", page, nil)
}

// NowPlaying fetches movie/now_playing.
func (c *Client) NowPlaying(ctx context.Context, page int) (*model.PageResponse, error) {
	return c.page(ctx, "movie/now_playing", page, nil)
}

// Upcoming fetches movie/upcoming.
func (c *Client) Upcoming(ctx context.Context, page int) (*model.PageResponse, error) {
	return c.page(ctx, "movie/upcoming", page, nil)
}

// SearchMovies fetches search/movie for a free-text query.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (*model.PageResponse, error) {
	return c.page(ctx, "search/movie", page, url.Values{"query": {query}})
}

func (c *Client) page(ctx context.Context, path string, page int, extra url.Values) (*model.PageResponse, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{"page": {strconv.Itoa(page)}}
	for k, v := range extra {
		params[k] = v
	}
	var res *model.PageResponse
	if err := c.get(ctx, path, params, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// --- Detail Methods ---

// MovieDetails fetches movie/{id}.
func (c *Client) MovieDetails(ctx context.Context, movieID int) (*model.Movie, error) {
	var res *model.Movie
	if err := c.get(ctx, "movie/"+strconv.Itoa(movieID), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Genres fetches genre/movie/list.
func (c *Client) Genres(ctx context.Context) (*model.GenreList, error) {
	var res *model.GenreList
	if err := c.get(ctx, "genre/movie/list", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// --- Transport ---

// errorBody is the shape of TMDB error responses.
type errorBody struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// get decodes the response into target, which must be a pointer to a
// pointer so that a JSON null leaves it nil.
func (c *Client) get(ctx context.Context, path string, params url.Values, target any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.endpoint(path, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "path", path, "error", err)
		return fmt.Errorf("get %s: %w", path, redactError(err, c.apiKey))
	}
	defer resp.Body.Close()
	c.log.Debug("request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{StatusCode: resp.StatusCode, Message: serverMessage(resp)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &RequestError{StatusCode: resp.StatusCode, Message: "empty response body"}
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &RequestError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if isNilTarget(target) {
		return &RequestError{StatusCode: resp.StatusCode, Message: "empty response body"}
	}
	return nil
}

func (c *Client) endpoint(path string, params url.Values) *url.URL {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	u.RawQuery = q.Encode()
	return u
}

// serverMessage prefers the TMDB status_message over the bare status text.
func serverMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.StatusMessage != "" {
		return eb.StatusMessage
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "unknown status"
}

func isNilTarget(target any) bool {
	switch t := target.(type) {
	case **model.PageResponse:
		return *t == nil
	case **model.Movie:
		return *t == nil
	case **model.GenreList:
		return *t == nil
	}
	return false
}

// redactError strips the API key from url.Error messages, which embed the full URL.
func redactError(err error, apiKey string) error {
	if apiKey == "" {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{
			Op:  uerr.Op,
			URL: strings.ReplaceAll(uerr.URL, apiKey, "***"),
			Err: uerr.Err,
		}
	}
	return err
}
