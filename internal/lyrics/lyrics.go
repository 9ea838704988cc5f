// Package lyrics looks up plain-text lyrics on LRCLIB.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/handiism/songsync/internal/http"
	"github.com/handiism/songsync/internal/logging"
)

// Endpoint is the name registered on the rate limited client.
const Endpoint = "lrclib"

// DefaultBaseURL is the public LRCLIB root.
const DefaultBaseURL = "https://lrclib.net"

type getResponse struct {
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
}

// Resolver fetches lyrics for one track per call. Results are not cached:
// lyrics are per track, so repeated lookups are rare.
type Resolver struct {
	client *http.RateLimitedClient
	logger *log.Logger
}

// NewResolver registers the LRCLIB endpoint on client.
func NewResolver(client *http.RateLimitedClient, baseURL string, minInterval time.Duration, logger *log.Logger) *Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client.Register(Endpoint, baseURL, minInterval)
	return &Resolver{client: client, logger: logging.OrDiscard(logger)}
}

// Resolve returns the plain lyrics for a track. album may be empty.
// ok is false when the lookup failed, found nothing, or the track is
// marked instrumental.
func (r *Resolver) Resolve(ctx context.Context, title, artist, album string) (string, bool) {
	params := url.Values{
		"track_name":  {title},
		"artist_name": {artist},
	}
	if album != "" {
		params.Set("album_name", album)
	}

	resp, err := r.client.Call(ctx, Endpoint, "/api/get", params)
	if err != nil {
		var lerr *http.LookupError
		if errors.As(err, &lerr) && lerr.Status == 404 {
			r.logger.Debug("no lyrics", "title", title, "artist", artist)
		} else {
			r.logger.Warn("lyrics lookup failed", "title", title, "artist", artist, "err", err)
		}
		return "", false
	}

	var body getResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		r.logger.Warn("lyrics response unreadable", "title", title, "err", err)
		return "", false
	}

	text := strings.TrimSpace(body.PlainLyrics)
	if body.Instrumental || text == "" {
		return "", false
	}
	return text, true
}
