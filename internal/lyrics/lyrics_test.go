package lyrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	songhttp "github.com/handiism/songsync/internal/http"
)

func TestResolver_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		switch q.Get("track_name") {
		case "Song":
			if q.Get("artist_name") != "Artist" || q.Get("album_name") != "Album" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"trackName":"Song","plainLyrics":"  line one\nline two\n"}`))
		case "NoAlbum":
			if _, ok := q["album_name"]; ok {
				t.Error("album_name should be omitted when empty")
			}
			w.Write([]byte(`{"plainLyrics":"la la"}`))
		case "Instrumental":
			w.Write([]byte(`{"instrumental":true,"plainLyrics":""}`))
		case "Empty":
			w.Write([]byte(`{"plainLyrics":""}`))
		case "Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	rl := songhttp.NewRateLimitedClient(songhttp.NewClientWith(server.Client(), ""), nil)
	res := NewResolver(rl, server.URL, 0, nil)

	tests := []struct {
		title  string
		album  string
		want   string
		wantOK bool
	}{
		{"Song", "Album", "line one\nline two", true},
		{"NoAlbum", "", "la la", true},
		{"Instrumental", "", "", false},
		{"Empty", "", "", false},
		{"Broken", "", "", false},
		{"Missing", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := res.Resolve(context.Background(), tt.title, "Artist", tt.album)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolver_NoCaching(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"plainLyrics":"x"}`))
	}))
	defer server.Close()

	rl := songhttp.NewRateLimitedClient(songhttp.NewClientWith(server.Client(), ""), nil)
	res := NewResolver(rl, server.URL, 0, nil)

	res.Resolve(context.Background(), "a", "b", "")
	res.Resolve(context.Background(), "a", "b", "")

	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
}
