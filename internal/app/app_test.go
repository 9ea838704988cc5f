package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/handiism/songsync/internal/asset"
	"github.com/handiism/songsync/internal/catalogue"
	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/model"
	"github.com/handiism/songsync/internal/pipeline"
)

type stubAcquirer struct {
	queries []string
}

func (s *stubAcquirer) Acquire(ctx context.Context, query, destPath string) error {
	s.queries = append(s.queries, query)
	return os.WriteFile(destPath, bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64), 0644)
}

// testSettings disables everything that would reach the network.
func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	s := config.DefaultSettings()
	s.OutputDir = filepath.Join(dir, "out")
	s.OverridesPath = filepath.Join(dir, "overrides.toml")
	s.Throttle = config.ThrottleSettings{}
	s.Genre.Provider = config.ProviderNone
	s.Lyrics.Enabled = false
	s.Cover.Enabled = false
	s.Ledger.Path = filepath.Join(dir, "songsync.db")
	return s
}

func TestNew_SetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *config.Settings)
		stub   bool
		target error
	}{
		{
			name:   "invalid settings",
			modify: func(s *config.Settings) { s.Throttle.CooldownMin = 10; s.Throttle.CooldownMax = 1 },
			stub:   true,
			target: config.ErrInvalidSettings,
		},
		{
			name:   "missing yt-dlp",
			modify: func(s *config.Settings) { s.Acquire.Binary = "songsync-no-such-binary" },
			target: asset.ErrBinaryNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			tt.modify(s)
			opts := Options{Settings: s}
			if tt.stub {
				opts.Acquirer = &stubAcquirer{}
			}

			_, err := New(context.Background(), opts)
			if !pipeline.IsSetupError(err) {
				t.Fatalf("expected SetupError, got %v", err)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestNew_BadOverrides(t *testing.T) {
	s := testSettings(t)
	if err := os.WriteFile(s.OverridesPath, []byte("not = [valid"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := New(context.Background(), Options{Settings: s, Acquirer: &stubAcquirer{}})
	if !pipeline.IsSetupError(err) {
		t.Errorf("expected SetupError, got %v", err)
	}
}

func TestNew_UnusableProviderDisablesGenres(t *testing.T) {
	s := testSettings(t)
	s.Genre.Provider = config.ProviderSpotify

	a, err := New(context.Background(), Options{Settings: s, Acquirer: &stubAcquirer{}, Extension: ".mp3"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "liked.csv")
	if err := catalogue.Write(path, []model.TrackRecord{{Title: "One", Artist: "A"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Run(context.Background(), RunOptions{Catalogue: path}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stats := a.GenreStats(); stats.IdentifyCalls != 0 || stats.None != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRun(t *testing.T) {
	s := testSettings(t)
	s.Playlist.Create = true
	acquirer := &stubAcquirer{}

	a, err := New(context.Background(), Options{Settings: s, Acquirer: acquirer, Extension: ".mp3"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Close()

	path := filepath.Join(t.TempDir(), "liked.csv")
	records := []model.TrackRecord{
		{Title: "One", Artist: "A", Genre: "Rock"},
		{Title: "", Artist: "B"},
		{Title: "Two", Artist: "B"},
	}
	if err := catalogue.Write(path, records); err != nil {
		t.Fatal(err)
	}

	var outcomes []pipeline.Outcome
	summary, err := a.Run(context.Background(), RunOptions{
		Catalogue: path,
		OnOutcome: func(o pipeline.Outcome) { outcomes = append(outcomes, o) },
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.Processed != 3 || summary.Acquired != 2 || summary.Skipped != 1 || summary.Tagged != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(acquirer.queries) != 2 {
		t.Errorf("queries = %v", acquirer.queries)
	}
	if _, err := os.Stat(filepath.Join(s.OutputDir, "One - A.mp3")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
	if summary.PlaylistPath == "" {
		t.Error("expected a playlist")
	}
	if len(outcomes) != 3 || outcomes[1].State != pipeline.StateSkipped {
		t.Errorf("outcomes = %+v", outcomes)
	}

	run, err := a.Ledger().LastRun()
	if err != nil {
		t.Fatalf("LastRun() error: %v", err)
	}
	if run.ID != summary.RunID || run.Catalogue != path {
		t.Errorf("run = %+v, summary run %q", run, summary.RunID)
	}
	skipped, err := a.Ledger().Outcomes(run.ID, "skipped")
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 1 || skipped[0].Position != 2 {
		t.Errorf("skipped = %+v", skipped)
	}
}

func TestRun_MissingCatalogue(t *testing.T) {
	s := testSettings(t)
	s.Ledger.Enabled = false

	a, err := New(context.Background(), Options{Settings: s, Acquirer: &stubAcquirer{}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Ledger() != nil {
		t.Error("ledger should be disabled")
	}

	_, err = a.Run(context.Background(), RunOptions{Catalogue: filepath.Join(t.TempDir(), "missing.csv")})
	if !pipeline.IsSetupError(err) {
		t.Errorf("expected SetupError, got %v", err)
	}
}
