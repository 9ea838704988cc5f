package genre

import (
	"context"
	"sort"
	"strings"
)

// Tag is a free-text tag with its popularity count.
type Tag struct {
	Name  string
	Count int
}

// Classification is what a source knows about an identifier.
type Classification struct {
	// Genres are curated genre names, most relevant first.
	Genres []string

	// Tags are free-text tags. Only consulted when Genres is empty.
	Tags []Tag
}

// Source is a two-phase genre capability: identify an artist, then classify
// the identifier.
type Source interface {
	// Name is used in log lines.
	Name() string

	// Identify searches for an artist and returns its source-specific
	// identifier. ok is false when the source has no confident match.
	Identify(ctx context.Context, artist string) (id string, ok bool, err error)

	// Classify looks up genres and tags for an identifier.
	Classify(ctx context.Context, id string) (Classification, error)
}

// Pick selects the genre list for a classification: the explicit genres,
// otherwise the single highest-count tag. Names are trimmed and duplicates
// (case-insensitive) dropped. Returns nil when nothing usable remains.
func (c Classification) Pick() []string {
	if genres := dedupe(c.Genres); len(genres) > 0 {
		return genres
	}

	tags := make([]Tag, 0, len(c.Tags))
	for _, t := range c.Tags {
		if strings.TrimSpace(t.Name) != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })
	return []string{strings.TrimSpace(tags[0].Name)}
}

func dedupe(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// normalize turns an artist name into a cache key.
func normalize(artist string) string {
	return strings.Join(strings.Fields(strings.ToLower(artist)), " ")
}
