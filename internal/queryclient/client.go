// Package queryclient speaks to the event-query endpoint. It offers two
// fetch modes: network-only, which always hits the origin and populates the
// local cache as a side effect, and cache-only, which never touches the
// network.
package queryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const maxErrorBodyBytes = 1024

// Options configure the query client.
type Options struct {
	Endpoint   string
	HTTPClient *http.Client
	CacheTTL   time.Duration // 0 means cached entries never expire
	Tracer     trace.Tracer  // nil disables span emission
}

// Client issues query operations against the endpoint. It is safe for
// concurrent use; the local cache is shared across all callers.
type Client struct {
	endpoint string
	http     *http.Client
	cache    *gocache.Cache
	tracer   trace.Tracer
}

func New(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("queryclient")
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		cache:    gocache.New(ttl, 10*time.Minute),
		tracer:   tracer,
	}, nil
}

// FetchNetworkOnly forces an origin fetch for (limit, seed). On a response
// free of structured errors the result is stored in the local cache.
// Transport failures and non-2xx statuses are returned as errors; structured
// errors come back inside the Response.
func (c *Client) FetchNetworkOnly(ctx context.Context, limit, seed int) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "query.fetch",
		trace.WithAttributes(
			attribute.Int("query.limit", limit),
			attribute.Int("query.seed", seed),
			attribute.String("query.mode", "network-only"),
		))
	defer span.End()

	resp, err := c.fetch(ctx, Request{Limit: limit, Seed: seed})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !resp.HasErrors() {
		c.cache.Set(cacheKey(limit, seed), resp, gocache.DefaultExpiration)
	}
	span.SetAttributes(attribute.Int("query.events", len(resp.Events)))
	return resp, nil
}

// FetchCacheOnly serves (limit, seed) purely from the local cache. A miss
// returns (nil, nil); it is not an error.
func (c *Client) FetchCacheOnly(ctx context.Context, limit, seed int) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cached, ok := c.cache.Get(cacheKey(limit, seed))
	if !ok {
		return nil, nil
	}
	resp, ok := cached.(*Response)
	if !ok {
		return nil, fmt.Errorf("unexpected cache entry type %T", cached)
	}
	return resp, nil
}

// CacheItemCount reports the number of locally cached responses.
func (c *Client) CacheItemCount() int {
	return c.cache.ItemCount()
}

func (c *Client) fetch(ctx context.Context, q Request) (*Response, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return nil, &StatusError{Code: httpResp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// Origins behind proxies sometimes answer 200 with an HTML error page.
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON (%d bytes)", len(body))
	}

	resp := &Response{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func cacheKey(limit, seed int) string {
	return fmt.Sprintf("q:%d:%d", limit, seed)
}
