package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/roach88/kimconv/internal/config"
	"github.com/roach88/kimconv/internal/record"
)

// ErrUnavailable is returned while the circuit breaker rejects requests.
var ErrUnavailable = errors.New("query service temporarily unavailable")

// maxResponseBytes bounds the size of a query response body.
const maxResponseBytes = 256 << 20

// StatusError reports a non-2xx response from the query service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query service returned %d: %s", e.StatusCode, e.Body)
}

// BreakerSettings tunes the circuit breaker around the query service.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// The breaker opens once at least MinRequests were made in the current
	// interval and the failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// Options configure a Client.
type Options struct {
	URL      string
	Database string
	Limit    int
	Timeout  time.Duration
	Breaker  BreakerSettings
}

// OptionsFromConfig maps the query section of the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:      cfg.Query.URL,
		Database: cfg.Query.Database,
		Limit:    cfg.Query.Limit,
		Timeout:  cfg.QueryTimeout(),
		Breaker: BreakerSettings{
			MaxRequests:      cfg.Query.Breaker.MaxRequests,
			Interval:         cfg.BreakerInterval(),
			Timeout:          cfg.BreakerTimeout(),
			FailureThreshold: cfg.Query.Breaker.FailureThreshold,
			MinRequests:      cfg.Query.Breaker.MinRequests,
		},
	}
}

// Client queries the OpenKIM database for records by element.
type Client struct {
	opts    Options
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for breaker transitions and request failures.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client.
func NewClient(opts Options, options ...ClientOption) *Client {
	if opts.Database == "" {
		opts.Database = "data"
	}
	c := &Client{
		opts:   opts,
		http:   &http.Client{Timeout: opts.Timeout},
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}

	minRequests := opts.Breaker.MinRequests
	threshold := opts.Breaker.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openkim-query",
		MaxRequests: opts.Breaker.MaxRequests,
		Interval:    opts.Breaker.Interval,
		Timeout:     opts.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Cancelled requests do not count against the service.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// State returns the breaker state, for diagnostics.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// form builds the request body for an element query.
func (c *Client) form(element string) (url.Values, error) {
	q, err := json.Marshal(map[string]string{record.KeySpecies: element})
	if err != nil {
		return nil, err
	}
	return url.Values{
		"query":    {string(q)},
		"fields":   {"{}"},
		"database": {c.opts.Database},
		"limit":    {strconv.Itoa(c.opts.Limit)},
		"flat":     {"on"},
	}, nil
}

// Query returns every flat record containing element.
func (c *Client) Query(ctx context.Context, element string) ([]record.Record, error) {
	if element == "" {
		return nil, errors.New("query: empty element")
	}
	form, err := c.form(element)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, form)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("query %s: %w", element, ErrUnavailable)
	}
	if err != nil {
		c.logger.Debug("query failed", zap.String("element", element), zap.Error(err))
		return nil, fmt.Errorf("query %s: %w", element, err)
	}

	records := result.([]record.Record)
	c.logger.Debug("query finished", zap.String("element", element), zap.Int("records", len(records)))
	return records, nil
}

func (c *Client) post(ctx context.Context, form url.Values) ([]record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}
	return record.DecodeRecords(body)
}
