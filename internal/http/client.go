package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultUserAgent identifies songsync to external services. MusicBrainz and
// LRCLIB both ask clients for a descriptive User-Agent.
const DefaultUserAgent = "songsync/1.0 (https://github.com/handiism/songsync)"

// Client wraps plain HTTP operations with songsync's configuration.
//
// Client provides:
//   - Configured User-Agent header
//   - Timeout handling
//   - Byte fetches for cover art
//   - File download with progress tracking
//
// Client does no throttling of its own; see RateLimitedClient.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client with a 60 second timeout.
// An empty userAgent falls back to DefaultUserAgent.
func NewClient(userAgent string) *Client {
	return NewClientWith(&http.Client{Timeout: 60 * time.Second}, userAgent)
}

// NewClientWith wraps an existing *http.Client, e.g. an httptest server's.
func NewClientWith(hc *http.Client, userAgent string) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{httpClient: hc, userAgent: userAgent}
}

// HTTPClient exposes the underlying client for SDKs that need one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ProgressWriter wraps a writer to track download progress.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// get issues a GET with the configured User-Agent. The caller owns the body.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, */*")

	return c.httpClient.Do(req)
}

// Fetch performs a GET request and returns the response body as bytes.
//
// Fetch is not rate limited. It is used for cover images, which are served
// by CDNs without lookup quotas.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 200 OK
//   - Reading the body fails
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// DownloadFile streams url to destPath with an optional progress callback.
//
// The content is written to a temporary sibling file and renamed into place
// once complete, so an interrupted download never leaves a file at destPath
// that the dedup check would mistake for a finished one.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	tmpPath := destPath + ".part"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		}
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, destPath)
}
