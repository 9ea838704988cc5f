// Package asset resolves catalogue records to local audio files.
//
// The Resolver computes the deterministic output path for a record, returns
// an existing file untouched, and otherwise asks an Acquirer to produce it.
// YTDLP is the Acquirer used in production:
//
//	backend := asset.NewYTDLP(settings.Acquire, httpClient, logger)
//	resolver := asset.NewResolver(backend, overrides, backend.Extension(), logger)
//	a, err := resolver.Resolve(ctx, rec, "downloads", false)
//	if errors.Is(err, asset.ErrIncompleteRecord) {
//	    // skip
//	}
package asset
