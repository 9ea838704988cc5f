// Package override loads manual acquisition queries keyed by output file name.
//
// The file is a flat TOML table:
//
//	"Song - Artist.mp3" = "Song Artist official audio"
//	"Intro - Band.mp3"  = "https://www.youtube.com/watch?v=..."
package override

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Map is a read-only mapping from output file name to query string.
// The zero value is an empty map.
type Map struct {
	entries map[string]string
}

// New builds a Map from entries. The map is copied.
func New(entries map[string]string) *Map {
	m := &Map{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

// Load reads a Map from a TOML file. A missing file or empty path yields an
// empty map.
func Load(path string) (*Map, error) {
	if path == "" {
		return New(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}

	entries := make(map[string]string)
	if err := toml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse overrides: %w", err)
	}

	return New(entries), nil
}

// Lookup returns the override query for an output file name.
func (m *Map) Lookup(fileName string) (string, bool) {
	if m == nil {
		return "", false
	}
	q, ok := m.entries[fileName]
	return q, ok
}

// Len returns the number of overrides.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
