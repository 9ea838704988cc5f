package spotify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"

	"github.com/handiism/songsync/internal/genre"
	"github.com/handiism/songsync/internal/http"
	"github.com/handiism/songsync/internal/logging"
)

// Endpoint is the name the genre source registers on the rate limited client.
const Endpoint = "spotify"

const apiBaseURL = "https://api.spotify.com/v1/"

// TagFetcher supplies free-text tags for an artist name.
type TagFetcher interface {
	ArtistTags(ctx context.Context, artist string) ([]genre.Tag, error)
}

// GenreSource identifies artists through catalogue search and classifies
// them by their Spotify genres. When Spotify lists no genres the optional
// tag fetcher is asked for tags instead.
type GenreSource struct {
	api    *spotify.Client
	rl     *http.RateLimitedClient
	tags   TagFetcher
	logger *log.Logger

	// names maps artist ids to names for the tag fallback.
	names sync.Map
}

// NewGenreSource wraps an app or user client. Calls are spaced by
// minInterval through rl. tags may be nil.
func NewGenreSource(api *spotify.Client, rl *http.RateLimitedClient, minInterval time.Duration, tags TagFetcher, logger *log.Logger) *GenreSource {
	rl.Register(Endpoint, apiBaseURL, minInterval)
	return &GenreSource{
		api:    api,
		rl:     rl,
		tags:   tags,
		logger: logging.OrDiscard(logger),
	}
}

// Name implements genre.Source.
func (s *GenreSource) Name() string { return Endpoint }

// Identify searches artists by name. An exact (case-insensitive) name match
// wins; otherwise the top search result is taken.
func (s *GenreSource) Identify(ctx context.Context, artist string) (string, bool, error) {
	if err := s.rl.Wait(ctx, Endpoint); err != nil {
		return "", false, err
	}

	res, err := s.api.Search(ctx, artist, spotify.SearchTypeArtist, spotify.Limit(5))
	if err != nil {
		return "", false, lookupError(ctx, err)
	}
	if res.Artists == nil || len(res.Artists.Artists) == 0 {
		return "", false, nil
	}

	best := res.Artists.Artists[0]
	for _, a := range res.Artists.Artists {
		if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(artist)) {
			best = a
			break
		}
	}

	s.names.Store(best.ID.String(), best.Name)
	return best.ID.String(), true, nil
}

// Classify returns the artist's Spotify genres, or its tags when there are
// none and a tag fetcher is configured.
func (s *GenreSource) Classify(ctx context.Context, id string) (genre.Classification, error) {
	if err := s.rl.Wait(ctx, Endpoint); err != nil {
		return genre.Classification{}, err
	}

	artist, err := s.api.GetArtist(ctx, spotify.ID(id))
	if err != nil {
		return genre.Classification{}, lookupError(ctx, err)
	}

	c := genre.Classification{Genres: artist.Genres}
	if len(c.Genres) > 0 || s.tags == nil {
		return c, nil
	}

	name := artist.Name
	if name == "" {
		if v, ok := s.names.Load(id); ok {
			name = v.(string)
		}
	}

	tags, err := s.tags.ArtistTags(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return genre.Classification{}, ctx.Err()
		}
		s.logger.Warn("tag fallback failed", "artist", name, "err", err)
		return c, nil
	}
	c.Tags = tags
	return c, nil
}

// lookupError maps SDK errors onto the shared lookup error type.
func lookupError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return &http.LookupError{Endpoint: Endpoint, Status: apiErr.Status, Err: err}
	}
	return &http.LookupError{Endpoint: Endpoint, Err: err}
}
