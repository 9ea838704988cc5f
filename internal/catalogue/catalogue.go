package catalogue

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	ioutils "github.com/handiism/songsync/internal/io"
	"github.com/handiism/songsync/internal/model"
)

// sniffSize is how much of the file is inspected to guess the delimiter.
const sniffSize = 1024

var (
	// ErrMissingColumns is returned when the header names neither a title
	// nor an artist column.
	ErrMissingColumns = errors.New("catalogue has no title or artist column")

	// ErrEmpty is returned for a file without a header row.
	ErrEmpty = errors.New("catalogue is empty")
)

type field int

const (
	fieldTitle field = iota
	fieldArtist
	fieldAlbum
	fieldTrackNumber
	fieldDiscNumber
	fieldReleaseDate
	fieldCoverURL
	fieldGenre
)

// headerAliases maps normalized header names to record fields. The Italian
// names are produced by older exports of liked songs.
var headerAliases = map[string]field{
	"track name":         fieldTitle,
	"title":              fieldTitle,
	"name":               fieldTitle,
	"nome della traccia": fieldTitle,

	"artist name(s)":    fieldArtist,
	"artist name":       fieldArtist,
	"artist":            fieldArtist,
	"artists":           fieldArtist,
	"nome dell'artista": fieldArtist,

	"album name":      fieldAlbum,
	"album":           fieldAlbum,
	"nome dell'album": fieldAlbum,

	"track number":         fieldTrackNumber,
	"track":                fieldTrackNumber,
	"numero della traccia": fieldTrackNumber,

	"disc number":      fieldDiscNumber,
	"disc":             fieldDiscNumber,
	"numero del disco": fieldDiscNumber,

	"release date":                fieldReleaseDate,
	"album release date":          fieldReleaseDate,
	"data di rilascio dell'album": fieldReleaseDate,

	"album image url":              fieldCoverURL,
	"cover url":                    fieldCoverURL,
	"url dell'immagine dell'album": fieldCoverURL,

	"genres": fieldGenre,
	"genre":  fieldGenre,
	"generi": fieldGenre,
}

// exportHeader is the header written by Write, one column per field.
var exportHeader = []string{
	"Track Name",
	"Artist Name(s)",
	"Album Name",
	"Track Number",
	"Disc Number",
	"Release Date",
	"Album Image URL",
	"Genres",
}

// Reader yields the records of a catalogue file in file order.
//
// The whole file is parsed when the Reader is created. Catalogues are small
// (a few thousand rows) and knowing the total up front lets the pipeline
// report "[i/n]" progress. Re-opening the file restarts the sequence.
type Reader struct {
	path    string
	records []model.TrackRecord
	pos     int
}

// Open parses the catalogue at path.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Reader{path: path, records: records}, nil
}

// FromRecords returns a Reader over records already in memory.
func FromRecords(records []model.TrackRecord) *Reader {
	return &Reader{records: records}
}

// Path returns the file the reader was opened from, or "" for FromRecords.
func (r *Reader) Path() string {
	return r.path
}

// Len returns the total number of records.
func (r *Reader) Len() int {
	return len(r.records)
}

// Next returns the next record, or io.EOF when the catalogue is exhausted.
func (r *Reader) Next() (model.TrackRecord, error) {
	if r.pos >= len(r.records) {
		return model.TrackRecord{}, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

// All returns every record regardless of the iteration position.
func (r *Reader) All() []model.TrackRecord {
	out := make([]model.TrackRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Parse decodes catalogue bytes. The delimiter is sniffed from the first
// KiB and the header row is matched against known column names.
func Parse(data []byte) ([]model.TrackRecord, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = SniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, err
	}

	columns := mapColumns(header)
	if _, ok := columns[fieldTitle]; !ok {
		return nil, ErrMissingColumns
	}
	if _, ok := columns[fieldArtist]; !ok {
		return nil, ErrMissingColumns
	}

	var records []model.TrackRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}

		get := func(f field) string {
			i, ok := columns[f]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		records = append(records, model.TrackRecord{
			Title:       get(fieldTitle),
			Artist:      get(fieldArtist),
			Album:       get(fieldAlbum),
			TrackNumber: get(fieldTrackNumber),
			DiscNumber:  get(fieldDiscNumber),
			ReleaseDate: get(fieldReleaseDate),
			CoverURL:    get(fieldCoverURL),
			Genre:       get(fieldGenre),
		})
	}

	return records, nil
}

func mapColumns(header []string) map[field]int {
	columns := make(map[field]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		f, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, seen := columns[f]; !seen {
			columns[f] = i
		}
	}
	return columns
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// SniffDelimiter guesses the field delimiter from the first KiB of data.
//
// Candidates are ',', ';', '\t' and '|'. A candidate that occurs the same
// non-zero number of times on every complete sample line wins, the highest
// count first. Otherwise the candidate most frequent on the header line is
// used. Quoted sections are ignored. The fallback is ','.
func SniffDelimiter(data []byte) rune {
	sample := data
	truncated := false
	if len(sample) > sniffSize {
		sample = sample[:sniffSize]
		truncated = true
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(sample))
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ','
	}

	candidates := []rune{',', ';', '\t', '|'}

	best, bestCount := rune(0), 0
	for _, c := range candidates {
		n := countOutsideQuotes(lines[0], c)
		if n == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if countOutsideQuotes(line, c) != n {
				consistent = false
				break
			}
		}
		if consistent && n > bestCount {
			best, bestCount = c, n
		}
	}
	if best != 0 {
		return best
	}

	for _, c := range candidates {
		if n := countOutsideQuotes(lines[0], c); n > bestCount {
			best, bestCount = c, n
		}
	}
	if best != 0 {
		return best
	}
	return ','
}

func countOutsideQuotes(line string, c rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}

// Write stores records as a comma-separated catalogue with an English
// header that Open understands.
func Write(path string, records []model.TrackRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.Title,
			rec.Artist,
			rec.Album,
			rec.TrackNumber,
			rec.DiscNumber,
			rec.ReleaseDate,
			rec.CoverURL,
			rec.Genre,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return ioutils.WriteFileAtomic(path, buf.Bytes())
}
