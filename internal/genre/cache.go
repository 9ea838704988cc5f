package genre

import "sync"

type identity struct {
	id    string
	found bool
}

// Cache memoizes genre resolution for one run.
//
// It holds two maps: normalized artist query -> identifier (including
// "no identifier"), and identifier -> genre list (including an empty list).
// Entries are created on first lookup and never evicted. A Cache is owned
// by whoever creates it, normally the pipeline driver, and is not persisted.
type Cache struct {
	mu         sync.RWMutex
	identities map[string]identity
	genres     map[string][]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		identities: make(map[string]identity),
		genres:     make(map[string][]string),
	}
}

// Identifier returns the cached identifier for an artist query. cached is
// false when the query has never been answered; found is false when it
// was answered with "no identifier".
func (c *Cache) Identifier(query string) (id string, found, cached bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.identities[query]
	return e.id, e.found, ok
}

// StoreIdentifier records the answer to an artist query.
func (c *Cache) StoreIdentifier(query, id string, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities[query] = identity{id: id, found: found}
}

// Genres returns the cached genre list for an identifier. An empty list
// with ok == true means the identifier was looked up and had no genre.
func (c *Cache) Genres(id string) (genres []string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.genres[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), g...), true
}

// StoreGenres records the genre list for an identifier.
func (c *Cache) StoreGenres(id string, genres []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genres[id] = append([]string{}, genres...)
}

// Len returns the number of identifiers with a cached genre list.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.genres)
}
