package genre

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/model"
)

// Result is the outcome of one resolution stage.
type Result struct {
	Genres []string
	Found  bool
}

// Found wraps a successful stage result.
func Found(genres []string) Result { return Result{Genres: genres, Found: true} }

// NotFound lets the chain continue with the next stage.
var NotFound = Result{}

// query carries the per-record state shared by the stages.
type query struct {
	rec model.TrackRecord
	id  string
}

type stage struct {
	name string
	run  func(ctx context.Context, q *query) Result
}

// Stats counts the work done by a Resolver.
type Stats struct {
	IdentifyCalls int64
	LookupCalls   int64
	CacheHits     int64
	Supplied      int64
	None          int64
}

// Resolver resolves a best-effort genre list for a track through a fallback
// chain of stages, each returning Found or NotFound:
//
//  1. identify: find the source identifier for the primary artist
//  2. cache: return the identifier's cached genres without network calls
//  3. lookup: one rate-limited classify call, cached before returning
//  4. supplied: the genre list carried by the record itself
//  5. none: nothing, and the tagger writes an empty genre field
//
// Each identifier is classified at most once per Cache, also when Prefetch
// runs lookups concurrently.
//
// Example:
//
//	r := genre.NewResolver(mbSource, genre.NewCache(), logger)
//	genres := r.Resolve(ctx, rec) // nil when nothing was found
type Resolver struct {
	source Source
	cache  *Cache
	logger *log.Logger
	group  singleflight.Group
	stages []stage

	identifyCalls atomic.Int64
	lookupCalls   atomic.Int64
	cacheHits     atomic.Int64
	supplied      atomic.Int64
	none          atomic.Int64
}

// NewResolver creates a Resolver. A nil source disables the identify and
// lookup stages; a nil cache is replaced by a fresh one.
func NewResolver(source Source, cache *Cache, logger *log.Logger) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	r := &Resolver{
		source: source,
		cache:  cache,
		logger: logging.OrDiscard(logger),
	}
	r.stages = []stage{
		{"identify", r.identify},
		{"cache", r.cached},
		{"lookup", r.lookup},
		{"supplied", r.fromRecord},
	}
	return r
}

// Cache returns the cache owned by the resolver.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve runs the stages left to right and returns the first Found
// result. It never fails: unavailable sources count as NotFound.
func (r *Resolver) Resolve(ctx context.Context, rec model.TrackRecord) []string {
	q := &query{rec: rec}
	for _, s := range r.stages {
		res := s.run(ctx, q)
		if res.Found {
			r.logger.Debug("genre resolved", "track", rec.String(), "stage", s.name, "genres", res.Genres)
			return res.Genres
		}
	}
	r.none.Add(1)
	r.logger.Debug("no genre", "track", rec.String())
	return nil
}

func (r *Resolver) identify(ctx context.Context, q *query) Result {
	if r.source == nil {
		return NotFound
	}
	artist := q.rec.PrimaryArtist()
	if artist == "" {
		return NotFound
	}

	id, found, err := r.identifier(ctx, artist)
	if err != nil {
		r.logger.Warn("genre identify failed", "source", r.source.Name(), "artist", artist, "err", err)
		return NotFound
	}
	if found {
		q.id = id
	}
	return NotFound
}

// identifier answers an artist query from the cache or the source. Absence
// is cached, errors are not.
func (r *Resolver) identifier(ctx context.Context, artist string) (string, bool, error) {
	key := normalize(artist)
	if id, found, cached := r.cache.Identifier(key); cached {
		return id, found, nil
	}

	v, err, _ := r.group.Do("identify:"+key, func() (any, error) {
		if id, found, cached := r.cache.Identifier(key); cached {
			return identity{id: id, found: found}, nil
		}
		r.identifyCalls.Add(1)
		id, found, err := r.source.Identify(ctx, artist)
		if err != nil {
			return nil, err
		}
		r.cache.StoreIdentifier(key, id, found)
		return identity{id: id, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	e := v.(identity)
	return e.id, e.found, nil
}

func (r *Resolver) cached(ctx context.Context, q *query) Result {
	if q.id == "" {
		return NotFound
	}
	genres, ok := r.cache.Genres(q.id)
	if !ok {
		return NotFound
	}
	r.cacheHits.Add(1)
	if len(genres) == 0 {
		return NotFound
	}
	return Found(genres)
}

func (r *Resolver) lookup(ctx context.Context, q *query) Result {
	if q.id == "" {
		return NotFound
	}
	if _, ok := r.cache.Genres(q.id); ok {
		return NotFound
	}

	genres := r.classify(ctx, q.id)
	if len(genres) == 0 {
		return NotFound
	}
	return Found(genres)
}

// classify issues at most one Classify call per identifier. Failures are
// cached as an empty result so the identifier is not retried this run.
func (r *Resolver) classify(ctx context.Context, id string) []string {
	v, _, _ := r.group.Do("classify:"+id, func() (any, error) {
		if genres, ok := r.cache.Genres(id); ok {
			return genres, nil
		}

		r.lookupCalls.Add(1)
		c, err := r.source.Classify(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return []string(nil), nil
			}
			r.logger.Warn("genre lookup failed", "source", r.source.Name(), "id", id, "err", err)
		}

		genres := c.Pick()
		r.cache.StoreGenres(id, genres)
		return genres, nil
	})
	genres, _ := v.([]string)
	return genres
}

func (r *Resolver) fromRecord(ctx context.Context, q *query) Result {
	genres := q.rec.SuppliedGenres()
	if len(genres) == 0 {
		return NotFound
	}
	r.supplied.Add(1)
	return Found(genres)
}

// Prefetch populates the cache for the distinct primary artists of records
// using at most limit concurrent lookups. Lookup failures are absorbed the
// same way Resolve absorbs them; only context cancellation is returned.
func (r *Resolver) Prefetch(ctx context.Context, records []model.TrackRecord, limit int) error {
	if r.source == nil {
		return nil
	}
	if limit < 1 {
		limit = 1
	}

	seen := make(map[string]bool)
	var artists []string
	for _, rec := range records {
		artist := rec.PrimaryArtist()
		key := normalize(artist)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		artists = append(artists, artist)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, artist := range artists {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, found, err := r.identifier(ctx, artist)
			if err != nil || !found {
				return ctx.Err()
			}
			r.classify(ctx, id)
			return ctx.Err()
		})
	}

	return g.Wait()
}

// Stats returns a snapshot of the resolver's counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		IdentifyCalls: r.identifyCalls.Load(),
		LookupCalls:   r.lookupCalls.Load(),
		CacheHits:     r.cacheHits.Load(),
		Supplied:      r.supplied.Load(),
		None:          r.none.Load(),
	}
}
