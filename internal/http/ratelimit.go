package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/handiism/songsync/internal/logging"
)

var (
	// ErrUnavailable matches every *LookupError via errors.Is.
	ErrUnavailable = errors.New("lookup unavailable")

	// ErrUnknownEndpoint is returned for calls to an unregistered endpoint.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// LookupError reports a failed external lookup. Status is the HTTP status
// code, or zero when the request never produced a response.
type LookupError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *LookupError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: unavailable: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: unavailable (HTTP %d)", e.Endpoint, e.Status)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) true for any LookupError.
func (e *LookupError) Is(target error) bool { return target == ErrUnavailable }

// Response is a successful lookup response.
type Response struct {
	Status int
	Body   []byte
}

type endpoint struct {
	baseURL string
	limiter *rate.Limiter
}

// RateLimitedClient calls named external endpoints, enforcing a minimum
// interval between consecutive calls to the same endpoint.
//
// Intervals are per endpoint, not global: a genre endpoint may require a
// second between calls while a lyrics endpoint requires none. The client
// never retries and never caches; both are the caller's concern.
//
// Example:
//
//	rl := NewRateLimitedClient(NewClient(""), logger)
//	rl.Register("musicbrainz", "https://musicbrainz.org/ws/2", 1100*time.Millisecond)
//	resp, err := rl.Call(ctx, "musicbrainz", "/artist", url.Values{"query": {"artist:Radiohead"}})
type RateLimitedClient struct {
	client *Client
	logger *log.Logger

	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// NewRateLimitedClient wraps client. A nil logger discards output.
func NewRateLimitedClient(client *Client, logger *log.Logger) *RateLimitedClient {
	if client == nil {
		client = NewClient("")
	}
	return &RateLimitedClient{
		client:    client,
		logger:    logging.OrDiscard(logger),
		endpoints: make(map[string]*endpoint),
	}
}

// Client returns the wrapped plain client.
func (r *RateLimitedClient) Client() *Client {
	return r.client
}

// Register adds or replaces an endpoint. A zero or negative minInterval
// disables spacing for that endpoint.
func (r *RateLimitedClient) Register(name, baseURL string, minInterval time.Duration) {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = &endpoint{
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *RateLimitedClient) lookup(name string) (*endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return ep, nil
}

// Wait blocks until the endpoint's interval since its previous call has
// elapsed, and marks the endpoint as called. Use it directly when the call
// itself goes through a third-party SDK.
func (r *RateLimitedClient) Wait(ctx context.Context, name string) error {
	ep, err := r.lookup(name)
	if err != nil {
		return err
	}
	return r.wait(ctx, name, ep)
}

func (r *RateLimitedClient) wait(ctx context.Context, name string, ep *endpoint) error {
	start := time.Now()
	if err := ep.limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		r.logger.Debug("rate limited", "endpoint", name, "waited", waited.Round(time.Millisecond))
	}
	return nil
}

// Call waits for the endpoint's slot, then issues GET <base><path>?<params>.
//
// Any non-2xx status is returned as a *LookupError carrying the status.
// Transport failures are also returned as *LookupError with Status 0.
// Context cancellation is returned unwrapped.
func (r *RateLimitedClient) Call(ctx context.Context, name, path string, params url.Values) (*Response, error) {
	ep, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := r.wait(ctx, name, ep); err != nil {
		return nil, err
	}

	target := ep.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	r.logger.Debug("lookup", "endpoint", name, "url", target)

	resp, err := r.client.get(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &LookupError{Endpoint: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &LookupError{Endpoint: name, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LookupError{Endpoint: name, Status: resp.StatusCode, Err: err}
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}
