// Package musicbrainz implements a genre source backed by the MusicBrainz
// web service.
//
// MusicBrainz asks clients to keep to one request per second and to send a
// descriptive User-Agent; both are handled by the rate limited client the
// source is given.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/handiism/songsync/internal/genre"
	"github.com/handiism/songsync/internal/http"
)

// Endpoint is the name the source registers on the rate limited client.
const Endpoint = "musicbrainz"

// DefaultBaseURL is the public web service root.
const DefaultBaseURL = "https://musicbrainz.org/ws/2"

// DefaultMinScore is the lowest search score accepted as a match.
const DefaultMinScore = 90

type searchResponse struct {
	Artists []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Score int    `json:"score"`
	} `json:"artists"`
}

type countedName struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type artistResponse struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Genres []countedName `json:"genres"`
	Tags   []countedName `json:"tags"`
}

// Source identifies artists by MBID and classifies them by their genres
// and folksonomy tags.
type Source struct {
	client   *http.RateLimitedClient
	minScore int
}

// New creates a Source and registers its endpoint on client.
// A zero minScore uses DefaultMinScore.
func New(client *http.RateLimitedClient, baseURL string, minInterval time.Duration, minScore int) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	client.Register(Endpoint, baseURL, minInterval)
	return &Source{client: client, minScore: minScore}
}

// Name implements genre.Source.
func (s *Source) Name() string { return Endpoint }

// Identify searches for the artist and returns the MBID of the best match
// scoring at least the configured minimum.
func (s *Source) Identify(ctx context.Context, artist string) (string, bool, error) {
	params := url.Values{
		"query": {`artist:"` + escapePhrase(artist) + `"`},
		"limit": {"5"},
		"fmt":   {"json"},
	}

	resp, err := s.client.Call(ctx, Endpoint, "/artist", params)
	if err != nil {
		return "", false, err
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", false, fmt.Errorf("failed to parse artist search: %w", err)
	}

	best := -1
	for i, a := range result.Artists {
		if a.ID == "" || a.Score < s.minScore {
			continue
		}
		if best < 0 || a.Score > result.Artists[best].Score ||
			(a.Score == result.Artists[best].Score && sameName(a.Name, artist) && !sameName(result.Artists[best].Name, artist)) {
			best = i
		}
	}
	if best < 0 {
		return "", false, nil
	}
	return result.Artists[best].ID, true, nil
}

// Classify looks up the artist's genres and tags, each ordered by vote count.
func (s *Source) Classify(ctx context.Context, id string) (genre.Classification, error) {
	params := url.Values{
		"inc": {"genres tags"},
		"fmt": {"json"},
	}

	resp, err := s.client.Call(ctx, Endpoint, "/artist/"+url.PathEscape(id), params)
	if err != nil {
		return genre.Classification{}, err
	}

	var artist artistResponse
	if err := json.Unmarshal(resp.Body, &artist); err != nil {
		return genre.Classification{}, fmt.Errorf("failed to parse artist %s: %w", id, err)
	}

	byCount := func(list []countedName) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Count > list[j].Count })
	}
	byCount(artist.Genres)
	byCount(artist.Tags)

	var c genre.Classification
	for _, g := range artist.Genres {
		c.Genres = append(c.Genres, g.Name)
	}
	for _, t := range artist.Tags {
		c.Tags = append(c.Tags, genre.Tag{Name: t.Name, Count: t.Count})
	}
	return c, nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// escapePhrase escapes a value for use inside a quoted Lucene phrase.
func escapePhrase(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
