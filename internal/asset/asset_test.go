package asset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/handiism/songsync/internal/config"
	songhttp "github.com/handiism/songsync/internal/http"
	"github.com/handiism/songsync/internal/model"
	"github.com/handiism/songsync/internal/override"
)

// fakeAcquirer writes a small file for every query and records the calls.
type fakeAcquirer struct {
	queries []string
	err     error
	noFile  bool
}

func (f *fakeAcquirer) Acquire(ctx context.Context, query, destPath string) error {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return f.err
	}
	if f.noFile {
		return nil
	}
	return os.WriteFile(destPath, []byte("audio"), 0644)
}

func TestResolver_Resolve(t *testing.T) {
	rec := model.TrackRecord{Title: "Song", Artist: "Artist"}

	t.Run("acquires missing file", func(t *testing.T) {
		dir := t.TempDir()
		acq := &fakeAcquirer{}
		r := NewResolver(acq, nil, "", nil)

		got, err := r.Resolve(context.Background(), rec, dir, false)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		want := model.ResolvedAsset{Path: filepath.Join(dir, "Song - Artist.mp3"), AcquiredThisRun: true}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
		if len(acq.queries) != 1 || acq.queries[0] != "Song Artist" {
			t.Errorf("queries = %v", acq.queries)
		}
	})

	t.Run("existing file is not re-acquired", func(t *testing.T) {
		for _, force := range []bool{false, true} {
			dir := t.TempDir()
			path := filepath.Join(dir, "Song - Artist.mp3")
			if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
				t.Fatal(err)
			}
			acq := &fakeAcquirer{}
			r := NewResolver(acq, nil, "", nil)

			got, err := r.Resolve(context.Background(), rec, dir, force)
			if err != nil {
				t.Fatal(err)
			}
			if !got.ExistedBefore || got.AcquiredThisRun || got.Path != path {
				t.Errorf("force=%v: Resolve() = %+v", force, got)
			}
			if len(acq.queries) != 0 {
				t.Errorf("force=%v: acquirer called", force)
			}
		}
	})

	t.Run("override query", func(t *testing.T) {
		acq := &fakeAcquirer{}
		overrides := override.New(map[string]string{"Song - Artist.mp3": "Song Artist live"})
		r := NewResolver(acq, overrides, "", nil)

		if _, err := r.Resolve(context.Background(), rec, t.TempDir(), false); err != nil {
			t.Fatal(err)
		}
		if acq.queries[0] != "Song Artist live" {
			t.Errorf("query = %q", acq.queries[0])
		}
	})

	t.Run("incomplete record", func(t *testing.T) {
		acq := &fakeAcquirer{}
		r := NewResolver(acq, nil, "", nil)
		dir := filepath.Join(t.TempDir(), "never-created")

		for _, bad := range []model.TrackRecord{{Title: "Song"}, {Artist: "Artist"}, {Title: " ", Artist: "A"}} {
			_, err := r.Resolve(context.Background(), bad, dir, false)
			if !errors.Is(err, ErrIncompleteRecord) {
				t.Errorf("%+v: got %v", bad, err)
			}
		}
		if len(acq.queries) != 0 {
			t.Error("acquirer called for incomplete record")
		}
	})

	t.Run("acquisition failure", func(t *testing.T) {
		backendErr := errors.New("no results")
		r := NewResolver(&fakeAcquirer{err: backendErr}, nil, "", nil)

		_, err := r.Resolve(context.Background(), rec, t.TempDir(), false)
		if !errors.Is(err, ErrAcquisitionFailed) || !errors.Is(err, backendErr) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("success without a file", func(t *testing.T) {
		r := NewResolver(&fakeAcquirer{noFile: true}, nil, "", nil)

		_, err := r.Resolve(context.Background(), rec, t.TempDir(), false)
		if !errors.Is(err, ErrAcquisitionFailed) {
			t.Errorf("got %v", err)
		}
	})
}

func TestResolver_SamePathForSameTitleArtist(t *testing.T) {
	r := NewResolver(&fakeAcquirer{}, nil, "", nil)
	a := model.TrackRecord{Title: "What?", Artist: "AC/DC", Album: "One"}
	b := model.TrackRecord{Title: "What?", Artist: "AC/DC", Album: "Two", TrackNumber: "9"}

	if r.Path(a, "out") != r.Path(b, "out") {
		t.Error("records with the same title and artist must share a path")
	}
}

func TestYTDLP_Args(t *testing.T) {
	y := NewYTDLP(config.AcquireSettings{
		SearchPrefix: "ytsearch1:",
		AudioFormat:  "mp3",
		AudioQuality: "192K",
		ExtraArgs:    []string{"--cookies", "c.txt"},
	}, nil, nil)

	args := y.Args("Song Artist", "/out/Song - Artist.mp3")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--audio-format mp3",
		"--audio-quality 192K",
		"--output /out/Song - Artist.part.%(ext)s",
		"--cookies c.txt",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if last := args[len(args)-1]; last != "ytsearch1:Song Artist" {
		t.Errorf("target = %q", last)
	}

	args = y.Args("https://www.youtube.com/watch?v=abc", "/out/x.mp3")
	if last := args[len(args)-1]; last != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("URL target = %q", last)
	}
}

func TestYTDLP_Acquire(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "Song - Artist.mp3")
	y := NewYTDLP(config.AcquireSettings{AudioFormat: "mp3", SearchPrefix: "ytsearch1:"}, nil, nil)

	var gotName string
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		return nil, writeOutput(args, "audio")
	}

	if err := y.Acquire(context.Background(), "Song Artist", dest); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if gotName != "yt-dlp" {
		t.Errorf("binary = %q", gotName)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "audio" {
		t.Errorf("content = %q, err %v", data, err)
	}
	assertNoPartials(t, filepath.Dir(dest))
}

// writeOutput plays yt-dlp: it expands the --output template to mp3 and
// writes content there.
func writeOutput(args []string, content string) error {
	for i, arg := range args {
		if arg == "--output" && i+1 < len(args) {
			path := strings.ReplaceAll(args[i+1], "%(ext)s", "mp3")
			return os.WriteFile(path, []byte(content), 0644)
		}
	}
	return errors.New("no --output argument")
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".part") {
			t.Errorf("partial file left behind: %s", e.Name())
		}
	}
}

func TestYTDLP_AcquireFailures(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "x.mp3")
	y := NewYTDLP(config.AcquireSettings{}, nil, nil)

	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		writeOutput(args, "half")
		return []byte("[youtube] searching\nERROR: no video results\n"), errors.New("exit status 1")
	}
	err := y.Acquire(context.Background(), "q", dest)
	if err == nil || !strings.Contains(err.Error(), "ERROR: no video results") {
		t.Errorf("expected yt-dlp error output, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("failed run must not create %s", dest)
	}
	assertNoPartials(t, filepath.Dir(dest))

	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	}
	if err := y.Acquire(context.Background(), "q", dest); err == nil {
		t.Error("expected error when no file was produced")
	}
}

func TestYTDLP_DirectFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	y := NewYTDLP(config.AcquireSettings{AudioFormat: "mp3"}, songhttp.NewClientWith(server.Client(), ""), nil)
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Error("yt-dlp should not run for direct files")
		return nil, nil
	}

	dest := filepath.Join(t.TempDir(), "x.mp3")
	if err := y.Acquire(context.Background(), server.URL+"/files/track.mp3", dest); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "mp3-bytes" {
		t.Errorf("content = %q, err %v", data, err)
	}
}

func TestYTDLP_AcquireRetries(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "x.mp3")
	y := NewYTDLP(config.AcquireSettings{MaxRetries: 3, RetryCooldown: 1, RetryExponent: 2}, nil, nil)

	var waits []time.Duration
	y.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	attempts := 0
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return []byte("ERROR: HTTP Error 429"), errors.New("exit status 1")
		}
		return nil, writeOutput(args, "audio")
	}

	if err := y.Acquire(context.Background(), "q", dest); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; !reflect.DeepEqual(waits, want) {
		t.Errorf("waits = %v, want %v", waits, want)
	}
}

func TestYTDLP_MissingBinaryNotRetried(t *testing.T) {
	y := NewYTDLP(config.AcquireSettings{MaxRetries: 5}, nil, nil)
	y.wait = func(ctx context.Context, d time.Duration) error {
		t.Error("missing binary must not be retried")
		return nil
	}
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, exec.ErrNotFound
	}

	err := y.Acquire(context.Background(), "q", filepath.Join(t.TempDir(), "x.mp3"))
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("expected ErrBinaryNotFound, got %v", err)
	}
}

// fakeBinary writes an executable shell script standing in for yt-dlp.
// The script sees the --output template in $out.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a unix shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	script := "#!/bin/sh\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"--output\" ]; then out=$(printf '%s' \"$2\" | sed 's/%(ext)s/mp3/'); fi\n" +
		"  shift\n" +
		"done\n" + body + "\n"
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYTDLP_InterruptedAcquisitionIsRetriedOnRerun(t *testing.T) {
	rec := model.TrackRecord{Title: "Song", Artist: "Artist"}
	dir := t.TempDir()
	dest := filepath.Join(dir, "Song - Artist.mp3")

	// The conversion child keeps running after the parent is killed.
	hanging := fakeBinary(t, `printf PARTIAL > "$out"`+"\n"+`sleep 10`)
	y := NewYTDLP(config.AcquireSettings{Binary: hanging, SearchPrefix: "ytsearch1:"}, nil, nil)
	r := NewResolver(y, nil, y.Extension(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Resolve(ctx, rec, dir, false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cancelled acquisition took %v", elapsed)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("interrupted acquisition left %s behind", filepath.Base(dest))
	}
	assertNoPartials(t, dir)

	complete := fakeBinary(t, `printf COMPLETE > "$out"`)
	y = NewYTDLP(config.AcquireSettings{Binary: complete, SearchPrefix: "ytsearch1:"}, nil, nil)
	r = NewResolver(y, nil, y.Extension(), nil)

	got, err := r.Resolve(context.Background(), rec, dir, false)
	if err != nil {
		t.Fatalf("rerun Resolve() error: %v", err)
	}
	if got.ExistedBefore || !got.AcquiredThisRun {
		t.Errorf("rerun Resolve() = %+v, want a fresh acquisition", got)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "COMPLETE" {
		t.Errorf("content = %q, err %v", data, err)
	}
	assertNoPartials(t, dir)
}

func TestYTDLP_StalePartialsAreRemoved(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "Song - Artist.part.webm.part")
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "Other - Artist.mp3")
	if err := os.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	y := NewYTDLP(config.AcquireSettings{}, nil, nil)
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, writeOutput(args, "audio")
	}

	if err := y.Acquire(context.Background(), "q", filepath.Join(dir, "Song - Artist.mp3")); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	assertNoPartials(t, dir)
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}
