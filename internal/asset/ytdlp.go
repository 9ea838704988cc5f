package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/http"
	ioutils "github.com/handiism/songsync/internal/io"
	"github.com/handiism/songsync/internal/logging"
)

// ErrBinaryNotFound is returned when the yt-dlp executable is missing.
var ErrBinaryNotFound = errors.New("yt-dlp binary not found")

// partialMarker tags files yt-dlp writes before they are renamed into place.
const partialMarker = ".part."

// waitDelay bounds how long a cancelled yt-dlp may keep its output pipes open.
const waitDelay = 2 * time.Second

// YTDLP acquires audio by shelling out to yt-dlp.
//
// A plain query is turned into a search ("ytsearch1:<query>") and the first
// hit is extracted to the configured audio format. A query that is already
// an http(s) URL is passed through as is, so overrides can pin an exact
// video. URLs pointing straight at a file of the target format are
// downloaded without yt-dlp.
type YTDLP struct {
	binary       string
	searchPrefix string
	audioFormat  string
	audioQuality string
	extraArgs    []string

	maxRetries    int
	retryCooldown float64
	retryExponent float64

	client *http.Client
	logger *log.Logger

	// run executes the command; replaced in tests.
	run  func(ctx context.Context, name string, args ...string) ([]byte, error)
	wait func(ctx context.Context, d time.Duration) error
}

// NewYTDLP creates the backend from acquisition settings. client is used
// for direct file URLs and may be nil.
func NewYTDLP(cfg config.AcquireSettings, client *http.Client, logger *log.Logger) *YTDLP {
	y := &YTDLP{
		binary:       cfg.Binary,
		searchPrefix: cfg.SearchPrefix,
		audioFormat:  cfg.AudioFormat,
		audioQuality: cfg.AudioQuality,
		extraArgs:    cfg.ExtraArgs,

		maxRetries:    cfg.MaxRetries,
		retryCooldown: cfg.RetryCooldown,
		retryExponent: cfg.RetryExponent,

		client: client,
		logger: logging.OrDiscard(logger),
		run:    runCommand,
		wait:   waitContext,
	}
	if y.maxRetries < 1 {
		y.maxRetries = 1
	}
	if y.binary == "" {
		y.binary = "yt-dlp"
	}
	if y.audioFormat == "" {
		y.audioFormat = "mp3"
	}
	if y.client == nil {
		y.client = http.NewClient("")
	}
	return y
}

// Extension is the file extension produced by the backend.
func (y *YTDLP) Extension() string {
	return y.audioFormat
}

// Check verifies that the yt-dlp executable can be found.
func (y *YTDLP) Check() error {
	if _, err := exec.LookPath(y.binary); err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, y.binary)
	}
	return nil
}

// Acquire implements Acquirer. Failed attempts are retried with
// exponential backoff; a missing binary is not retried.
func (y *YTDLP) Acquire(ctx context.Context, query, destPath string) error {
	var err error
	for tries := 0; tries < y.maxRetries; tries++ {
		if tries > 0 {
			y.logger.Warn("retrying acquisition", "attempt", tries+1, "of", y.maxRetries, "query", query, "err", err)
			if werr := y.wait(ctx, y.retryDelay(tries-1)); werr != nil {
				return werr
			}
		}

		err = y.acquireOnce(ctx, query, destPath)
		if err == nil || ctx.Err() != nil || errors.Is(err, ErrBinaryNotFound) {
			return err
		}
	}
	return err
}

// retryDelay is the pause after the given failed try.
func (y *YTDLP) retryDelay(tries int) time.Duration {
	cooldown := y.retryCooldown * math.Pow(y.retryExponent, float64(tries))
	return time.Duration(cooldown * float64(time.Second))
}

// acquireOnce runs yt-dlp against a partial name and renames the result to
// destPath only after a clean exit, so destPath never holds a truncated file.
func (y *YTDLP) acquireOnce(ctx context.Context, query, destPath string) error {
	if y.isDirectFile(query) {
		y.logger.Debug("direct download", "url", query, "dest", destPath)
		return y.client.DownloadFile(ctx, query, destPath, nil)
	}

	base := strings.TrimSuffix(destPath, filepath.Ext(destPath))
	y.removePartials(base)
	defer y.removePartials(base)

	args := y.Args(query, destPath)
	y.logger.Debug("running yt-dlp", "args", strings.Join(args, " "))

	out, err := y.run(ctx, y.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBinaryNotFound, y.binary)
		}
		return fmt.Errorf("yt-dlp: %w: %s", err, lastLine(out))
	}

	partial := base + partialMarker + y.audioFormat
	ok, err := ioutils.Exists(partial)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("yt-dlp finished but %s was not created", filepath.Base(destPath))
	}
	if err := os.Rename(partial, destPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(partial), err)
	}
	return nil
}

// removePartials deletes leftovers of an earlier or failed attempt at base.
func (y *YTDLP) removePartials(base string) {
	dir, prefix := filepath.Dir(base), filepath.Base(base)+partialMarker
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			y.logger.Warn("cannot remove partial file", "file", e.Name(), "err", err)
		} else {
			y.logger.Debug("removed partial file", "file", e.Name())
		}
	}
}

// Args builds the yt-dlp argument list for a query and destination. yt-dlp
// writes to "<base>.part.<ext>"; Acquire moves it to destPath.
func (y *YTDLP) Args(query, destPath string) []string {
	base := strings.TrimSuffix(destPath, filepath.Ext(destPath))

	args := []string{
		"--extract-audio",
		"--audio-format", y.audioFormat,
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--no-warnings",
		"--output", base + partialMarker + "%(ext)s",
	}
	if y.audioQuality != "" {
		args = append(args, "--audio-quality", y.audioQuality)
	}
	args = append(args, y.extraArgs...)

	target := query
	if !isURL(query) {
		target = y.searchPrefix + query
	}
	return append(args, "--", target)
}

func (y *YTDLP) isDirectFile(query string) bool {
	if !isURL(query) {
		return false
	}
	u, err := url.Parse(query)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(filepath.Ext(u.Path), "."), y.audioFormat)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay
	killGroupOnCancel(cmd)
	err := cmd.Run()
	return out.Bytes(), err
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func waitContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
