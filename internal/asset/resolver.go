package asset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	ioutils "github.com/handiism/songsync/internal/io"
	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/model"
	"github.com/handiism/songsync/internal/override"
)

var (
	// ErrIncompleteRecord is returned for records without a title or artist.
	// Such records are skipped, not failed.
	ErrIncompleteRecord = errors.New("record has no title or artist")

	// ErrAcquisitionFailed wraps every acquisition backend failure.
	ErrAcquisitionFailed = errors.New("acquisition failed")
)

// Acquirer fetches audio for a query into destPath.
type Acquirer interface {
	Acquire(ctx context.Context, query, destPath string) error
}

// Resolver maps records to local audio files, acquiring the ones that do
// not exist yet.
//
// The output path is a pure function of title and artist, so an existing
// file at that path is the dedup signal: it is returned as is and never
// re-acquired.
type Resolver struct {
	acquirer  Acquirer
	overrides *override.Map
	extension string
	logger    *log.Logger

	locks sync.Map // output path -> *sync.Mutex
}

// NewResolver creates a Resolver. A nil overrides map means no overrides;
// an empty extension means model.DefaultExtension.
func NewResolver(acquirer Acquirer, overrides *override.Map, extension string, logger *log.Logger) *Resolver {
	if extension == "" {
		extension = model.DefaultExtension
	}
	return &Resolver{
		acquirer:  acquirer,
		overrides: overrides,
		extension: extension,
		logger:    logging.OrDiscard(logger),
	}
}

// Path returns the output path a record resolves to.
func (r *Resolver) Path(rec model.TrackRecord, outputDir string) string {
	return model.OutputPath(outputDir, rec, r.extension)
}

// Query returns the acquisition query for a record: the override keyed by
// the output file name when present, otherwise "title artist".
func (r *Resolver) Query(rec model.TrackRecord) (query string, overridden bool) {
	name := model.FileName(rec.Title, rec.Artist, r.extension)
	if q, ok := r.overrides.Lookup(name); ok {
		return q, true
	}
	return rec.Title + " " + rec.Artist, false
}

// Resolve returns the local asset for rec.
//
// An existing file is returned with ExistedBefore set. force does not cause
// a re-acquisition; it is only logged. Otherwise the acquirer runs and the
// file must exist afterwards.
func (r *Resolver) Resolve(ctx context.Context, rec model.TrackRecord, outputDir string, force bool) (model.ResolvedAsset, error) {
	if !rec.Complete() {
		return model.ResolvedAsset{}, ErrIncompleteRecord
	}

	path := r.Path(rec, outputDir)

	unlock := r.lock(path)
	defer unlock()

	exists, err := ioutils.Exists(path)
	if err != nil {
		return model.ResolvedAsset{}, err
	}
	if exists {
		if force {
			r.logger.Info("refresh requested, keeping existing file", "path", path)
		} else {
			r.logger.Debug("already present", "path", path)
		}
		return model.ResolvedAsset{Path: path, ExistedBefore: true}, nil
	}

	query, overridden := r.Query(rec)
	r.logger.Info("acquiring", "query", query, "override", overridden, "dest", filepath.Base(path))

	if err := r.acquirer.Acquire(ctx, query, path); err != nil {
		if ctx.Err() != nil {
			return model.ResolvedAsset{}, ctx.Err()
		}
		return model.ResolvedAsset{}, fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}

	exists, err = ioutils.Exists(path)
	if err != nil || !exists {
		return model.ResolvedAsset{}, fmt.Errorf("%w: %s missing after acquisition", ErrAcquisitionFailed, filepath.Base(path))
	}

	return model.ResolvedAsset{Path: path, AcquiredThisRun: true}, nil
}

// lock serializes work on one output path and returns the unlock func.
func (r *Resolver) lock(path string) func() {
	v, _ := r.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
