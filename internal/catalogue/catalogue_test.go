package catalogue

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/handiism/songsync/internal/model"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"semicolon", "a;b;c\n1;2;3\n", ';'},
		{"tab", "a\tb\tc\n1\t2\t3\n", '\t'},
		{"pipe", "a|b\n1|2\n", '|'},
		{"commas inside quotes", "a;b\n\"x, y, z\";2\n", ';'},
		{"inconsistent falls back to header", "a;b;c\n1;2\n", ';'},
		{"no delimiter", "title\n", ','},
		{"empty", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffDelimiter([]byte(tt.data)); got != tt.want {
				t.Errorf("SniffDelimiter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniffDelimiter_OnlyFirstKiB(t *testing.T) {
	var b strings.Builder
	b.WriteString("a;b\n")
	for b.Len() < sniffSize {
		b.WriteString("1;2\n")
	}
	b.WriteString("x,y,z,w,v\n")

	if got := SniffDelimiter([]byte(b.String())); got != ';' {
		t.Errorf("SniffDelimiter() = %q, want ';'", got)
	}
}

func TestParse_ItalianHeaders(t *testing.T) {
	data := "\xef\xbb\xbfNome della traccia,Nome dell'artista,Nome dell'album,Numero della traccia,Numero del disco,Data di rilascio dell'album,URL dell'immagine dell'album\n" +
		"Paranoid Android,Radiohead,OK Computer,2,1,1997-05-21,https://img/ok.jpg\n" +
		"\n" +
		"\"Get Lucky\",\"Daft Punk, Pharrell Williams\",Random Access Memories,8,1,2013,\n"

	records, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	want := model.TrackRecord{
		Title:       "Paranoid Android",
		Artist:      "Radiohead",
		Album:       "OK Computer",
		TrackNumber: "2",
		DiscNumber:  "1",
		ReleaseDate: "1997-05-21",
		CoverURL:    "https://img/ok.jpg",
	}
	if records[0] != want {
		t.Errorf("records[0] = %+v, want %+v", records[0], want)
	}
	if records[1].Artist != "Daft Punk, Pharrell Williams" {
		t.Errorf("quoted artist = %q", records[1].Artist)
	}
}

func TestParse_EnglishSemicolonWithGenres(t *testing.T) {
	data := "Track Name;Artist Name(s);Genres\nSong;Artist X;Pop, Rock\n"

	records, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Genre != "Pop, Rock" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty input: got %v", err)
	}
	if _, err := Parse([]byte("foo,bar\n1,2\n")); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("unknown headers: got %v", err)
	}
}

func TestReader_Iteration(t *testing.T) {
	r := FromRecords([]model.TrackRecord{{Title: "a"}, {Title: "b"}})
	if r.Len() != 2 {
		t.Fatalf("Len() = %d", r.Len())
	}

	var got []string
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, rec.Title)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("iteration order = %v", got)
	}
	if len(r.All()) != 2 {
		t.Error("All() should ignore the iteration position")
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liked_songs.csv")
	records := []model.TrackRecord{
		{Title: "Song, with comma", Artist: "A, B", Album: "X", TrackNumber: "1", DiscNumber: "1", ReleaseDate: "2020-01-01", CoverURL: "https://c", Genre: "Pop"},
		{Title: "Other", Artist: "C"},
	}

	if err := Write(path, records); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	got := r.All()
	if len(got) != len(records) {
		t.Fatalf("got %d records", len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], records[i])
		}
	}
}
