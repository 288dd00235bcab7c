// Package schema fetches and caches the official ISDOC XSD.
package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/isdoc-export/internal/logger"
)

// DefaultURL is the published ISDOC 6.0.2 invoice schema
const DefaultURL = "https://isdoc.cz/6.0.2/xsd/isdoc-invoice-6.0.2.xsd"

// maxSchemaSize bounds the fetched document
const maxSchemaSize = 8 << 20

// Fetcher retrieves the schema text
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context) ([]byte, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// HTTPFetcher downloads the schema over HTTP
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher for url with the given request timeout
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	if url == "" {
		url = DefaultURL
	}
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the schema
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch schema: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("failed to fetch schema: empty response")
	}
	return body, nil
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithLogger sets the cache logger
func WithLogger(l zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger.WithComponent(l, "schema")
	}
}

// Cache holds the schema text once it has been fetched successfully.
// Content is never invalidated; failed fetches are retried on the next call.
type Cache struct {
	fetcher Fetcher
	logger  zerolog.Logger

	mu      sync.Mutex
	content []byte
}

// NewCache creates an empty cache backed by fetcher
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: fetcher,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached schema, fetching it on first use.
// Concurrent callers wait for a single in-flight fetch.
func (c *Cache) Get(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.content != nil {
		return c.content, nil
	}

	start := time.Now()
	content, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Schema fetch failed")
		return nil, err
	}

	c.content = content
	c.logger.Info().
		Int("bytes", len(content)).
		Dur(logger.FieldDuration, time.Since(start)).
		Msg("Schema loaded")
	return c.content, nil
}

// Loaded reports whether the schema has been fetched
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content != nil
}
