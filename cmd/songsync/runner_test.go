package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/handiism/songsync/internal/app"
	"github.com/handiism/songsync/internal/audio"
	"github.com/handiism/songsync/internal/catalogue"
	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/ledger"
	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/model"
	"github.com/handiism/songsync/internal/pipeline"
)

var fakeAudio = bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64)

type stubAcquirer struct{}

func (stubAcquirer) Acquire(ctx context.Context, query, destPath string) error {
	return os.WriteFile(destPath, fakeAudio, 0644)
}

func newTestRunner() (*Runner, *bytes.Buffer) {
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger: logging.Discard(),
		Output: output,
		NewApp: func(ctx context.Context, opts app.Options) (*app.App, error) {
			opts.Acquirer = stubAcquirer{}
			return app.New(ctx, opts)
		},
	})
	return runner, output
}

// writeConfig saves offline settings into dir and returns the config path.
func writeConfig(t *testing.T, dir string, modify func(s *config.Settings)) string {
	t.Helper()
	s := config.DefaultSettings()
	s.OutputDir = filepath.Join(dir, "out")
	s.OverridesPath = filepath.Join(dir, "overrides.toml")
	s.Throttle = config.ThrottleSettings{}
	s.Genre.Provider = config.ProviderNone
	s.Lyrics.Enabled = false
	s.Cover.Enabled = false
	s.Ledger.Path = filepath.Join(dir, "songsync.db")
	if modify != nil {
		modify(s)
	}

	path := filepath.Join(dir, "songsync.toml")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output == nil {
				t.Error("expected default output to be set")
			}
			if runner.newApp == nil {
				t.Error("expected default app constructor to be set")
			}
		})

		t.Run("registers every command", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			names := map[string]bool{}
			for _, cmd := range runner.register() {
				names[cmd.Name] = true
			}
			for _, want := range []string{"run", "export", "history", "inspect", "config", "tui"} {
				if !names[want] {
					t.Errorf("missing command %q", want)
				}
			}
		})
	})

	t.Run("config", func(t *testing.T) {
		t.Run("init writes the example once", func(t *testing.T) {
			runner, output := newTestRunner()
			path := filepath.Join(t.TempDir(), "songsync.toml")

			if err := runner.command().Run(context.Background(), []string{"songsync", "config", "init", path}); err != nil {
				t.Fatalf("config init: %v", err)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected config file: %v", err)
			}
			if !strings.Contains(output.String(), path) {
				t.Errorf("output = %q", output.String())
			}

			if err := runner.command().Run(context.Background(), []string{"songsync", "config", "init", path}); err == nil {
				t.Error("expected an error for an existing file")
			}
		})

		t.Run("show prints defaults for a missing file", func(t *testing.T) {
			runner, output := newTestRunner()
			path := filepath.Join(t.TempDir(), "missing.toml")

			if err := runner.command().Run(context.Background(), []string{"songsync", "--config", path, "config", "show"}); err != nil {
				t.Fatalf("config show: %v", err)
			}
			if !strings.Contains(output.String(), `output_dir = "downloads"`) {
				t.Errorf("output = %q", output.String())
			}
		})
	})

	t.Run("inspect", func(t *testing.T) {
		runner, output := newTestRunner()
		path := filepath.Join(t.TempDir(), "Song - Band.mp3")
		if err := os.WriteFile(path, fakeAudio, 0644); err != nil {
			t.Fatal(err)
		}
		set := model.TagSet{Title: "Song", Artist: "Band", Album: "Record", Genres: []string{"Rock", "Pop"}, Lyrics: "one\ntwo"}
		if err := audio.NewTagger(audio.DefaultTagConfig(), nil, nil).Write(path, set); err != nil {
			t.Fatal(err)
		}

		if err := runner.command().Run(context.Background(), []string{"songsync", "inspect", path}); err != nil {
			t.Fatalf("inspect: %v", err)
		}
		out := output.String()
		for _, want := range []string{"Title:   Song", "Artist:  Band", "Genres:  Rock, Pop", "Lyrics:  2 lines"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("history", func(t *testing.T) {
		dir := t.TempDir()
		configPath := writeConfig(t, dir, nil)

		runner, output := newTestRunner()
		if err := runner.command().Run(context.Background(), []string{"songsync", "-c", configPath, "history"}); err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(output.String(), "No runs recorded") {
			t.Errorf("output = %q", output.String())
		}

		store, err := ledger.Open(filepath.Join(dir, "songsync.db"))
		if err != nil {
			t.Fatal(err)
		}
		runID, err := store.BeginRun("liked.csv", false)
		if err != nil {
			t.Fatal(err)
		}
		store.Record(runID, ledger.Entry{Position: 1, Title: "Good", Artist: "A", State: "done"})
		store.Record(runID, ledger.Entry{Position: 2, Title: "Bad", Artist: "B", State: "failed", Error: "no results"})
		store.FinishRun(runID)
		store.Close()

		output.Reset()
		if err := runner.command().Run(context.Background(), []string{"songsync", "-c", configPath, "history", "--failed"}); err != nil {
			t.Fatalf("history --failed: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, runID) || !strings.Contains(out, "Bad - B: no results") {
			t.Errorf("output missing the failed entry:\n%s", out)
		}
		if strings.Contains(out, "Good - A") {
			t.Errorf("output contains a done entry:\n%s", out)
		}
	})

	t.Run("run", func(t *testing.T) {
		t.Run("processes the catalogue", func(t *testing.T) {
			dir := t.TempDir()
			configPath := writeConfig(t, dir, func(s *config.Settings) { s.Ledger.Enabled = false })
			cataloguePath := filepath.Join(dir, "liked.csv")
			if err := catalogue.Write(cataloguePath, []model.TrackRecord{{Title: "One", Artist: "A"}}); err != nil {
				t.Fatal(err)
			}
			outDir := filepath.Join(dir, "music")

			runner, output := newTestRunner()
			args := []string{"songsync", "-c", configPath, "run", cataloguePath, outDir}
			if err := runner.command().Run(context.Background(), args); err != nil {
				t.Fatalf("run: %v", err)
			}

			out := output.String()
			if !strings.Contains(out, "Complete!") || !strings.Contains(out, "Tagged:    1") {
				t.Errorf("output missing summary:\n%s", out)
			}
			if _, err := os.Stat(filepath.Join(outDir, "One - A.mp3")); err != nil {
				t.Errorf("expected output file: %v", err)
			}
		})

		t.Run("force re-tags existing files without acquiring", func(t *testing.T) {
			dir := t.TempDir()
			configPath := writeConfig(t, dir, func(s *config.Settings) { s.Ledger.Enabled = false })
			cataloguePath := filepath.Join(dir, "liked.csv")
			if err := catalogue.Write(cataloguePath, []model.TrackRecord{{Title: "One", Artist: "A", Album: "New"}}); err != nil {
				t.Fatal(err)
			}
			outDir := filepath.Join(dir, "music")
			if err := os.MkdirAll(outDir, 0755); err != nil {
				t.Fatal(err)
			}
			existing := filepath.Join(outDir, "One - A.mp3")
			if err := os.WriteFile(existing, fakeAudio, 0644); err != nil {
				t.Fatal(err)
			}

			runner, output := newTestRunner()
			args := []string{"songsync", "-c", configPath, "run", "--force", cataloguePath, outDir}
			if err := runner.command().Run(context.Background(), args); err != nil {
				t.Fatalf("run --force: %v", err)
			}

			out := output.String()
			if !strings.Contains(out, "Acquired:  0") || !strings.Contains(out, "Tagged:    1") {
				t.Errorf("output missing summary:\n%s", out)
			}
			set, err := audio.ReadTagSet(existing, ", ")
			if err != nil {
				t.Fatal(err)
			}
			if set.Album != "New" {
				t.Errorf("Album = %q, want the catalogue value", set.Album)
			}
		})

		t.Run("missing catalogue is a setup error", func(t *testing.T) {
			dir := t.TempDir()
			configPath := writeConfig(t, dir, nil)

			runner, _ := newTestRunner()
			args := []string{"songsync", "-c", configPath, "run", filepath.Join(dir, "missing.csv")}
			err := runner.command().Run(context.Background(), args)
			if !pipeline.IsSetupError(err) {
				t.Errorf("expected SetupError, got %v", err)
			}
		})

		t.Run("cancelled run is interrupted", func(t *testing.T) {
			dir := t.TempDir()
			configPath := writeConfig(t, dir, func(s *config.Settings) { s.Ledger.Enabled = false })
			cataloguePath := filepath.Join(dir, "liked.csv")
			if err := catalogue.Write(cataloguePath, []model.TrackRecord{{Title: "One", Artist: "A"}}); err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			runner, _ := newTestRunner()
			err := runner.command().Run(ctx, []string{"songsync", "-c", configPath, "run", cataloguePath})
			if !errors.Is(err, errInterrupted) {
				t.Errorf("expected errInterrupted, got %v", err)
			}
		})
	})
}
