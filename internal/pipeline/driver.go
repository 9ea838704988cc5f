package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/handiism/songsync/internal/asset"
	"github.com/handiism/songsync/internal/audio"
	ioutils "github.com/handiism/songsync/internal/io"
	"github.com/handiism/songsync/internal/ledger"
	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/model"
)

// Iterator yields catalogue records in order and io.EOF at the end.
type Iterator interface {
	Next() (model.TrackRecord, error)
}

// AssetResolver maps a record to its local audio file.
type AssetResolver interface {
	Resolve(ctx context.Context, rec model.TrackRecord, outputDir string, force bool) (model.ResolvedAsset, error)
}

// GenreResolver resolves the genre list for a record. nil means no genre.
type GenreResolver interface {
	Resolve(ctx context.Context, rec model.TrackRecord) []string
}

// Prefetcher is implemented by genre resolvers able to warm their cache
// before the sequential pass.
type Prefetcher interface {
	Prefetch(ctx context.Context, records []model.TrackRecord, limit int) error
}

// LyricsResolver resolves lyrics for a track.
type LyricsResolver interface {
	Resolve(ctx context.Context, title, artist, album string) (string, bool)
}

// Tagger writes the tag set of a track.
type Tagger interface {
	Apply(ctx context.Context, path string, rec model.TrackRecord, genres []string, lyrics string) (audio.Result, error)
}

// Ledger records run history.
type Ledger interface {
	BeginRun(catalogue string, force bool) (string, error)
	Record(runID string, e ledger.Entry) error
	FinishRun(runID string) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options configures a Driver. Assets and Tagger are required; Genres,
// Lyrics, Ledger and Playlist are optional.
type Options struct {
	Assets AssetResolver
	Genres GenreResolver
	Lyrics LyricsResolver
	Tagger Tagger

	// Sleeper and Rand drive the cooldown. Defaults are a context-aware
	// timer and a time-seeded source.
	Sleeper Sleeper
	Rand    *rand.Rand

	// CooldownMin and CooldownMax bound the pause after each acquisition.
	CooldownMin time.Duration
	CooldownMax time.Duration

	Force     bool
	OutputDir string

	// Prefetch warms the genre cache with PrefetchLimit concurrent lookups
	// when the catalogue can list all its records up front.
	Prefetch      bool
	PrefetchLimit int

	// Catalogue names the input in the ledger.
	Catalogue string
	Ledger    Ledger

	// Playlist, when set, writes <OutputDir>/<PlaylistName>.<ext> listing
	// every track that reached Done.
	Playlist     *audio.PlaylistCreator
	PlaylistName string

	Logger     *log.Logger
	OnProgress func(ProgressEvent)
	OnOutcome  func(Outcome)
}

// Outcome is the terminal result of one track.
type Outcome struct {
	Position int
	Record   model.TrackRecord
	State    State
	Asset    model.ResolvedAsset
	Err      error

	// Cooldown is the pause owed before the next track. Zero unless the
	// asset was acquired during this run.
	Cooldown time.Duration
}

// Summary totals a run.
type Summary struct {
	RunID     string
	Processed int
	Skipped   int
	Failed    int
	Acquired  int
	Tagged    int

	Interrupted  bool
	PlaylistPath string
	Elapsed      time.Duration
}

// Driver runs the catalogue through the per-track state machine:
//
//	Pending -> Resolving -> Enriching -> Tagging -> Done
//
// with Skipped or Failed reachable from any state. Tracks are processed
// strictly one after another in catalogue order. A failing track never
// stops the run; only setup failures are returned as errors.
//
// Example:
//
//	d := pipeline.NewDriver(pipeline.Options{
//	    Assets:      assetResolver,
//	    Genres:      genreResolver,
//	    Tagger:      tagger,
//	    CooldownMin: 20 * time.Second,
//	    CooldownMax: 60 * time.Second,
//	    OutputDir:   "downloads",
//	})
//	summary, err := d.Run(ctx, reader)
type Driver struct {
	opts   Options
	logger *log.Logger

	position atomic.Int64
	total    atomic.Int64
}

// NewDriver creates a Driver.
func NewDriver(opts Options) *Driver {
	if opts.Sleeper == nil {
		opts.Sleeper = sleep
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if opts.CooldownMax < opts.CooldownMin {
		opts.CooldownMax = opts.CooldownMin
	}
	if opts.PlaylistName == "" {
		opts.PlaylistName = "songsync"
	}
	return &Driver{opts: opts, logger: logging.OrDiscard(opts.Logger)}
}

// Progress returns the position of the track being processed and the
// catalogue size, when known.
func (d *Driver) Progress() (current, total int) {
	return int(d.position.Load()), int(d.total.Load())
}

// Run processes every record of it. The returned error is nil or a
// *SetupError. Cancelling ctx stops the run between tracks and sets
// Summary.Interrupted; files completed so far stay intact.
func (d *Driver) Run(ctx context.Context, it Iterator) (Summary, error) {
	start := time.Now()
	var summary Summary

	if err := d.setup(it); err != nil {
		return summary, err
	}

	total := 0
	if sized, ok := it.(interface{ Len() int }); ok {
		total = sized.Len()
	}
	d.total.Store(int64(total))
	d.position.Store(0)

	d.prefetch(ctx, it)

	runID := d.beginRun()
	summary.RunID = runID

	var (
		entries []audio.PlaylistEntry
		owed    time.Duration
	)

	for pos := 1; ; pos++ {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.progress(ProgressEvent{Message: fmt.Sprintf("Error reading catalogue: %v", err), Level: LevelError})
			break
		}

		if owed > 0 {
			d.progress(ProgressEvent{Message: fmt.Sprintf("Cooling down for %s", owed.Round(time.Second)), Level: LevelVerbose, Position: pos, Total: total})
			if err := d.opts.Sleeper(ctx, owed); err != nil {
				summary.Interrupted = true
				break
			}
		}
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		d.position.Store(int64(pos))
		out := d.Process(ctx, pos, rec)

		// A non-terminal outcome means ctx was cancelled mid-track.
		if !out.State.Terminal() {
			summary.Interrupted = true
			break
		}

		summary.Processed++
		switch out.State {
		case StateDone:
			summary.Tagged++
			entries = append(entries, audio.PlaylistEntry{
				Path:   out.Asset.Path,
				Title:  rec.Title,
				Artist: rec.Artist,
				Album:  rec.Album,
			})
		case StateSkipped:
			summary.Skipped++
		case StateFailed:
			summary.Failed++
		}
		if out.Asset.AcquiredThisRun {
			summary.Acquired++
		}

		d.record(runID, out)
		if d.opts.OnOutcome != nil {
			d.opts.OnOutcome(out)
		}
		owed = out.Cooldown
	}

	if d.opts.Playlist != nil && len(entries) > 0 {
		summary.PlaylistPath = d.writePlaylist(entries)
	}

	d.finishRun(runID)
	summary.Elapsed = time.Since(start)

	level := LevelSuccess
	if summary.Failed > 0 || summary.Interrupted {
		level = LevelWarning
	}
	msg := fmt.Sprintf("Processed %d tracks: %d tagged, %d acquired, %d skipped, %d failed",
		summary.Processed, summary.Tagged, summary.Acquired, summary.Skipped, summary.Failed)
	if summary.Interrupted {
		msg += " (interrupted)"
	}
	d.progress(ProgressEvent{Message: msg, Level: level, Total: total})
	d.logger.Info("run finished",
		"processed", summary.Processed, "tagged", summary.Tagged, "acquired", summary.Acquired,
		"skipped", summary.Skipped, "failed", summary.Failed, "elapsed", summary.Elapsed.Round(time.Millisecond))

	return summary, nil
}

func (d *Driver) setup(it Iterator) error {
	if it == nil {
		return &SetupError{Op: "open catalogue", Err: errors.New("no catalogue")}
	}
	if d.opts.Assets == nil || d.opts.Tagger == nil {
		return &SetupError{Op: "configure pipeline", Err: errors.New("asset resolver and tagger are required")}
	}
	if d.opts.OutputDir == "" {
		return &SetupError{Op: "prepare output directory", Err: errors.New("no output directory")}
	}
	if err := ioutils.EnsureDir(d.opts.OutputDir); err != nil {
		return &SetupError{Op: "create output directory", Err: err}
	}
	if err := ioutils.CheckWritable(d.opts.OutputDir); err != nil {
		return &SetupError{Op: "check output directory", Err: err}
	}
	return nil
}

func (d *Driver) prefetch(ctx context.Context, it Iterator) {
	if !d.opts.Prefetch {
		return
	}
	p, ok := d.opts.Genres.(Prefetcher)
	lister, listable := it.(interface{ All() []model.TrackRecord })
	if !ok || !listable {
		return
	}

	d.progress(ProgressEvent{Message: "Prefetching genres", Level: LevelVerbose})
	if err := p.Prefetch(ctx, lister.All(), d.opts.PrefetchLimit); err != nil {
		d.logger.Warn("genre prefetch stopped", "err", err)
	}
}

// Process takes one record through the state machine and returns its
// terminal outcome. Per-track failures are reported in the outcome, never
// as a panic or an early return from the run.
func (d *Driver) Process(ctx context.Context, pos int, rec model.TrackRecord) Outcome {
	total := int(d.total.Load())
	out := Outcome{Position: pos, Record: rec, State: StatePending}
	label := trackLabel(rec)
	logger := d.logger.With("pos", pos, "track", label)
	d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] Processing %s", pos, total, label), Level: LevelInfo, Position: pos, Total: total})

	out.State = StateResolving
	a, err := d.opts.Assets.Resolve(ctx, rec, d.opts.OutputDir, d.opts.Force)
	if err != nil {
		out.Err = err
		switch {
		case ctx.Err() != nil:
			out.Err = ctx.Err()
			return out
		case errors.Is(err, asset.ErrAcquisitionFailed):
			out.State = StateFailed
			logger.Error("acquisition failed", "err", err)
			d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] %s: %v", pos, total, label, err), Level: LevelError, Position: pos, Total: total})
		default:
			out.State = StateSkipped
			logger.Warn("skipped", "err", err)
			d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] %s: skipped (%v)", pos, total, label, err), Level: LevelWarning, Position: pos, Total: total})
		}
		return out
	}

	out.Asset = a
	if a.AcquiredThisRun {
		out.Cooldown = d.cooldown()
		d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] Acquired: %s", pos, total, filepath.Base(a.Path)), Level: LevelVerbose, Position: pos, Total: total})
	}

	out.State = StateEnriching
	var genres []string
	if d.opts.Genres != nil {
		genres = d.opts.Genres.Resolve(ctx, rec)
	}
	var lyrics string
	if d.opts.Lyrics != nil {
		if text, ok := d.opts.Lyrics.Resolve(ctx, rec.Title, rec.Artist, rec.Album); ok {
			lyrics = text
		}
	}
	if ctx.Err() != nil {
		out.Err = ctx.Err()
		return out
	}
	logger.Debug("enriched", "genres", genres, "lyrics", lyrics != "")

	out.State = StateTagging
	res, err := d.opts.Tagger.Apply(ctx, a.Path, rec, genres, lyrics)
	if res.CoverErr != nil {
		logger.Warn("cover not updated", "err", res.CoverErr)
		d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] %s: cover not updated: %v", pos, total, label, res.CoverErr), Level: LevelWarning, Position: pos, Total: total})
	}
	if err != nil {
		out.State = StateFailed
		out.Err = err
		logger.Error("tagging failed", "err", err)
		d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] %s: %v", pos, total, label, err), Level: LevelError, Position: pos, Total: total})
		return out
	}

	out.State = StateDone
	d.progress(ProgressEvent{Message: fmt.Sprintf("[%d/%d] %s: done", pos, total, label), Level: LevelSuccess, Position: pos, Total: total})
	return out
}

// cooldown draws uniformly from [CooldownMin, CooldownMax].
func (d *Driver) cooldown() time.Duration {
	lo, hi := d.opts.CooldownMin, d.opts.CooldownMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(d.opts.Rand.Int64N(int64(hi-lo)+1))
}

func (d *Driver) writePlaylist(entries []audio.PlaylistEntry) string {
	name := d.opts.PlaylistName + "." + d.opts.Playlist.Format().Extension()
	path := filepath.Join(d.opts.OutputDir, name)

	content := d.opts.Playlist.CreatePlaylist(d.opts.PlaylistName, entries)
	if err := ioutils.WriteFileAtomic(path, []byte(content)); err != nil {
		d.progress(ProgressEvent{Message: fmt.Sprintf("Error creating playlist: %v", err), Level: LevelWarning})
		return ""
	}
	d.progress(ProgressEvent{Message: fmt.Sprintf("Created playlist %s", name), Level: LevelSuccess})
	return path
}

func (d *Driver) beginRun() string {
	if d.opts.Ledger == nil {
		return ""
	}
	id, err := d.opts.Ledger.BeginRun(d.opts.Catalogue, d.opts.Force)
	if err != nil {
		d.logger.Warn("ledger unavailable, run history disabled", "err", err)
		return ""
	}
	return id
}

func (d *Driver) record(runID string, out Outcome) {
	if runID == "" {
		return
	}
	e := ledger.Entry{
		Position: out.Position,
		Title:    out.Record.Title,
		Artist:   out.Record.Artist,
		Path:     out.Asset.Path,
		State:    out.State.String(),
		Acquired: out.Asset.AcquiredThisRun,
		Cooldown: out.Cooldown,
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	if err := d.opts.Ledger.Record(runID, e); err != nil {
		d.logger.Warn("failed to record outcome", "err", err)
	}
}

func (d *Driver) finishRun(runID string) {
	if runID == "" {
		return
	}
	if err := d.opts.Ledger.FinishRun(runID); err != nil {
		d.logger.Warn("failed to finish run", "err", err)
	}
}

func (d *Driver) progress(event ProgressEvent) {
	if d.opts.OnProgress != nil {
		d.opts.OnProgress(event)
	}
}

func trackLabel(rec model.TrackRecord) string {
	title, artist := strings.TrimSpace(rec.Title), strings.TrimSpace(rec.Artist)
	switch {
	case title == "" && artist == "":
		return "(untitled)"
	case artist == "":
		return title
	case title == "":
		return artist
	}
	return title + " - " + artist
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
