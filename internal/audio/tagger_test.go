package audio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	songhttp "github.com/handiism/songsync/internal/http"
	"github.com/handiism/songsync/internal/model"
)

// newAudioFile writes a stand-in audio file without any tag.
func newAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Song - Artist.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func coverServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cover.png" {
			w.Write(buf.Bytes())
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func testRecord() model.TrackRecord {
	return model.TrackRecord{
		Title:       "Song",
		Artist:      "Artist",
		Album:       "Album",
		TrackNumber: "3",
		DiscNumber:  "1",
		ReleaseDate: "2001-02-03",
	}
}

func TestTagger_ApplyWritesAllFields(t *testing.T) {
	server := coverServer(t)
	tagger := NewTagger(DefaultTagConfig(), songhttp.NewClientWith(server.Client(), ""), nil)
	path := newAudioFile(t)

	rec := testRecord()
	rec.CoverURL = server.URL + "/cover.png"

	res, err := tagger.Apply(context.Background(), path, rec, []string{"Rock", "Art Rock"}, "la la la")
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !res.CoverUpdated || !res.LyricsUpdated || res.CoverErr != nil {
		t.Errorf("unexpected result %+v", res)
	}

	got, err := ReadTagSet(path, "; ")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Song" || got.Artist != "Artist" || got.Album != "Album" {
		t.Errorf("text fields = %+v", got)
	}
	if got.TrackNumber != "3" || got.DiscNumber != "1" || got.Year != "2001" {
		t.Errorf("number fields = %q %q %q", got.TrackNumber, got.DiscNumber, got.Year)
	}
	if !reflect.DeepEqual(got.Genres, []string{"Rock", "Art Rock"}) {
		t.Errorf("Genres = %v", got.Genres)
	}
	if got.Lyrics != "la la la" {
		t.Errorf("Lyrics = %q", got.Lyrics)
	}
	if got.CoverMIME != "image/jpeg" || len(got.Cover) == 0 {
		t.Errorf("cover = %s (%d bytes)", got.CoverMIME, len(got.Cover))
	}
}

func TestTagger_StaleGenreIsCleared(t *testing.T) {
	tagger := NewTagger(DefaultTagConfig(), nil, nil)
	path := newAudioFile(t)
	ctx := context.Background()

	if _, err := tagger.Apply(ctx, path, testRecord(), []string{"Stale"}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tagger.Apply(ctx, path, testRecord(), nil, ""); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTagSet(path, "; ")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Genres) != 0 {
		t.Errorf("Genres = %v, want empty", got.Genres)
	}
}

func TestTagger_Idempotent(t *testing.T) {
	server := coverServer(t)
	tagger := NewTagger(DefaultTagConfig(), songhttp.NewClientWith(server.Client(), ""), nil)
	path := newAudioFile(t)
	ctx := context.Background()

	rec := testRecord()
	rec.CoverURL = server.URL + "/cover.png"

	var sets []model.TagSet
	for i := 0; i < 2; i++ {
		if _, err := tagger.Apply(ctx, path, rec, []string{"Pop"}, "words"); err != nil {
			t.Fatal(err)
		}
		set, err := ReadTagSet(path, "; ")
		if err != nil {
			t.Fatal(err)
		}
		sets = append(sets, set)
	}

	if !reflect.DeepEqual(sets[0], sets[1]) {
		t.Errorf("second apply changed the tag:\n%+v\n%+v", sets[0], sets[1])
	}
}

func TestTagger_AbsentValuesKeepPrevious(t *testing.T) {
	server := coverServer(t)
	tagger := NewTagger(DefaultTagConfig(), songhttp.NewClientWith(server.Client(), ""), nil)
	path := newAudioFile(t)
	ctx := context.Background()

	rec := testRecord()
	rec.CoverURL = server.URL + "/cover.png"
	if _, err := tagger.Apply(ctx, path, rec, nil, "old lyrics"); err != nil {
		t.Fatal(err)
	}
	before, err := ReadTagSet(path, "; ")
	if err != nil {
		t.Fatal(err)
	}

	rec.CoverURL = server.URL + "/missing.png"
	rec.ReleaseDate = "unknown"
	res, err := tagger.Apply(ctx, path, rec, nil, "")
	if err != nil {
		t.Fatalf("cover failure must not fail the apply: %v", err)
	}
	if !errors.Is(res.CoverErr, ErrCoverFetchFailed) {
		t.Errorf("CoverErr = %v", res.CoverErr)
	}
	if res.CoverUpdated || res.LyricsUpdated {
		t.Errorf("unexpected result %+v", res)
	}

	after, err := ReadTagSet(path, "; ")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(after.Cover, before.Cover) {
		t.Error("previous cover should be kept")
	}
	if after.Lyrics != "old lyrics" {
		t.Errorf("Lyrics = %q, want previous value", after.Lyrics)
	}
	if after.Year != "2001" {
		t.Errorf("Year = %q, want previous value", after.Year)
	}
}

func TestTagger_WriteFailed(t *testing.T) {
	tagger := NewTagger(DefaultTagConfig(), nil, nil)

	_, err := tagger.Apply(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), testRecord(), nil, "")
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
}
