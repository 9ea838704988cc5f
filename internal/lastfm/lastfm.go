// Package lastfm fetches artist tags from the Last.fm API. It backs the
// Spotify genre source when Spotify has no curated genres for an artist.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/handiism/songsync/internal/genre"
	"github.com/handiism/songsync/internal/http"
)

// Endpoint is the name the client registers on the rate limited client.
const Endpoint = "lastfm"

// DefaultBaseURL is the Last.fm API root.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

var (
	// ErrRateLimited is returned when Last.fm reports the rate limit was hit.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is rejected.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrUnknownArtist is returned when Last.fm has no such artist.
	ErrUnknownArtist = errors.New("unknown artist")
)

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Client is a Last.fm API client.
type Client struct {
	rl     *http.RateLimitedClient
	apiKey string
}

// New creates a Client and registers its endpoint on rl.
func New(rl *http.RateLimitedClient, apiKey, baseURL string, minInterval time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rl.Register(Endpoint, baseURL, minInterval)
	return &Client{rl: rl, apiKey: apiKey}
}

// ArtistTags returns the artist's top tags, most popular first.
func (c *Client) ArtistTags(ctx context.Context, artist string) ([]genre.Tag, error) {
	params := url.Values{
		"method":      {"artist.getTopTags"},
		"artist":      {artist},
		"autocorrect": {"1"},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	resp, err := c.rl.Call(ctx, Endpoint, "/", params)
	if err != nil {
		return nil, fmt.Errorf("fetching artist tags: %w", err)
	}

	// Last.fm reports most failures as a 200 with an error body.
	var apiErr apiError
	if err := json.Unmarshal(resp.Body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrUnknownArtist, artist)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	var top topTagsResponse
	if err := json.Unmarshal(resp.Body, &top); err != nil {
		return nil, fmt.Errorf("parsing artist tags response: %w", err)
	}

	tags := make([]genre.Tag, 0, len(top.TopTags.Tag))
	for _, t := range top.TopTags.Tag {
		tags = append(tags, genre.Tag{Name: t.Name, Count: t.Count})
	}
	return tags, nil
}
