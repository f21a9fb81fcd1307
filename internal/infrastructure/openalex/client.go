package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/ports"
)

const (
	// ProviderName is the registry name of this client.
	ProviderName = "openalex"

	DefaultBaseURL           = "https://api.openalex.org"
	DefaultPerPage           = 200
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 8.0

	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
	defaultMaxRetryAfter  = 2 * time.Minute

	maxPerPage   = 200
	maxBodyBytes = 32 << 20
	userAgent    = "ScholarSnippets/1.0"
)

// ErrSequenceConsumed is yielded when a works sequence is ranged a second time.
var ErrSequenceConsumed = errors.New("openalex: works sequence already consumed")

// Config holds connection settings for the OpenAlex API.
type Config struct {
	BaseURL           string
	Mailto            string
	PerPage           int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client fetches works from OpenAlex. It is safe for concurrent use; all
// requests share one rate limiter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	maxRetryAfter    time.Duration
	sleeper          func(time.Duration)
}

var _ ports.WorkSource = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the number of attempts per page (defaults to 4).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithMaxRetryAfter caps how long a server-provided Retry-After may delay a retry.
func WithMaxRetryAfter(limit time.Duration) Option {
	return func(c *Client) {
		c.maxRetryAfter = limit
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger sets the logger used for retry and paging diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds an OpenAlex client.
func NewClient(cfg Config, opts ...Option) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PerPage <= 0 || cfg.PerPage > maxPerPage {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		limiter:          rate.NewLimiter(limit, 1),
		logger:           slog.New(slog.DiscardHandler),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		maxRetryAfter:    defaultMaxRetryAfter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name implements source.Provider.
func (c *Client) Name() string { return ProviderName }

// FetchWorks returns a lazy sequence of the works attributed to the given
// ORCID. Pages are requested while the caller ranges; breaking out early
// stops paging. maxResults <= 0 means no limit.
func (c *Client) FetchWorks(ctx context.Context, identifier string, maxResults int) iter.Seq2[domain.Work, error] {
	var consumed atomic.Bool
	return func(yield func(domain.Work, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(domain.Work{}, ErrSequenceConsumed)
			return
		}

		perPage := c.cfg.PerPage
		if maxResults > 0 && maxResults < perPage {
			perPage = maxResults
		}

		cursor := "*"
		yielded := 0
		for page := 1; ; page++ {
			resp, err := c.fetchPage(ctx, identifier, cursor, perPage)
			if err != nil {
				yield(domain.Work{}, &domain.RetrievalError{Identifier: identifier, Page: page, Err: err})
				return
			}
			c.logger.Debug("openalex page fetched",
				slog.String("identifier", identifier),
				slog.Int("page", page),
				slog.Int("results", len(resp.Results)),
			)

			for _, rec := range resp.Results {
				work, ok := rec.toWork()
				if !ok {
					if !yield(domain.Work{}, &domain.MalformedRecordError{Identifier: identifier, WorkID: rec.ID, Field: "title"}) {
						return
					}
					continue
				}
				if !yield(work, nil) {
					return
				}
				yielded++
				if maxResults > 0 && yielded >= maxResults {
					return
				}
			}

			cursor = resp.Meta.NextCursor
			if cursor == "" || len(resp.Results) == 0 {
				return
			}
		}
	}
}

func (c *Client) pageURL(identifier, cursor string, perPage int) string {
	q := url.Values{}
	q.Set("filter", "authorships.author.orcid:https://orcid.org/"+identifier)
	q.Set("per-page", strconv.Itoa(perPage))
	q.Set("cursor", cursor)
	if c.cfg.Mailto != "" {
		q.Set("mailto", c.cfg.Mailto)
	}
	return c.cfg.BaseURL + "/works?" + q.Encode()
}

func (c *Client) fetchPage(ctx context.Context, identifier, cursor string, perPage int) (worksPage, error) {
	attempts := c.retryAttempts()
	endpoint := c.pageURL(identifier, cursor, perPage)
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		page, err := c.fetchPageOnce(ctx, endpoint)
		if err == nil {
			return page, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				return worksPage{}, fmt.Errorf("failed after %d attempts: %w", attempt, err)
			}
			return worksPage{}, err
		}
		c.logger.Warn("openalex request failed, retrying",
			slog.String("identifier", identifier),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return worksPage{}, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return worksPage{}, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// fetchPageOnce performs a single request. The body is always drained and
// closed before returning.
func (c *Client) fetchPageOnce(ctx context.Context, endpoint string) (worksPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return worksPage{}, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return worksPage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return worksPage{}, fmt.Errorf("request works: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return worksPage{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return worksPage{}, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var page worksPage
	if err := json.Unmarshal(body, &page); err != nil {
		return worksPage{}, fmt.Errorf("decode works page: %w", err)
	}
	return page, nil
}

func (c *Client) userAgent() string {
	if c.cfg.Mailto == "" {
		return userAgent
	}
	return userAgent + " (+mailto:" + c.cfg.Mailto + ")"
}
