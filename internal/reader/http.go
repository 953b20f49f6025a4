package reader

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/ratelimit"
)

const (
	// Rate limit: 2 requests per second against the reader service, burst of 5.
	defaultRPS   = 2.0
	defaultBurst = 5

	defaultTimeout = 30 * time.Second
)

// HTTPClient is a rate-limited HTTP implementation of Client.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// NewHTTPClient creates a reader client against the given base URL.
func NewHTTPClient(baseURL string, logger *slog.Logger, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases resources held by the client.
func (c *HTTPClient) Close() {
	c.limiter.Stop()
}

// Login implements Client.
func (c *HTTPClient) Login(ctx context.Context, creds Credentials) (Handle, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal credentials: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/api/v1/login", nil, body, Handle{})
	if err != nil {
		if errors.Is(err, errors.ErrSessionExpired) {
			// A 401 on login means the credentials themselves are wrong.
			return Handle{}, errors.InvalidCredentials("reader service rejected credentials")
		}
		return Handle{}, err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Handle{}, errors.Provider("reader login response is malformed").WithCause(err)
	}
	if resp.Token == "" {
		return Handle{}, errors.Provider("reader login response missing token")
	}
	return Handle{Token: resp.Token}, nil
}

// FetchPageRange implements Client.
func (c *HTTPClient) FetchPageRange(ctx context.Context, h Handle, asin string, startID, endID int64) ([]Page, error) {
	query := url.Values{}
	query.Set("start", strconv.FormatInt(startID, 10))
	query.Set("end", strconv.FormatInt(endID, 10))

	data, err := c.doRequest(ctx, http.MethodGet, "/api/v1/books/"+url.PathEscape(asin)+"/pages", query, nil, h)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Pages []Page `json:"pages"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Provider("reader page response is malformed").WithCause(err)
	}
	return resp.Pages, nil
}

// FetchBookList implements Client.
func (c *HTTPClient) FetchBookList(ctx context.Context, h Handle) ([]domain.BookSummary, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v1/books", nil, nil, h)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Books []domain.BookSummary `json:"books"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Provider("reader book list response is malformed").WithCause(err)
	}
	return resp.Books, nil
}

// FetchBookDetails implements Client.
func (c *HTTPClient) FetchBookDetails(ctx context.Context, h Handle, asin string) (*domain.BookDetails, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v1/books/"+url.PathEscape(asin), nil, nil, h)
	if err != nil {
		return nil, err
	}

	var details domain.BookDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, errors.Provider("reader book details response is malformed").WithCause(err)
	}
	return &details, nil
}

// doRequest executes an HTTP request with rate limiting and maps status codes
// to domain errors.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, query url.Values, body []byte, h Handle) ([]byte, error) {
	if err := c.limiter.Wait(ctx, "reader"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PageVoice/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	if c.logger != nil {
		c.logger.Debug("reader request", "method", method, "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Provider("reader service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Provider("read reader response").WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.SessionExpired("reader credential is stale")
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFound("reader resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Provider("reader service rate limited the request")
	case resp.StatusCode >= 500:
		return nil, errors.Providerf("reader service returned %d", resp.StatusCode)
	default:
		return nil, errors.Providerf("unexpected reader status %d: %s", resp.StatusCode, string(data))
	}
}
