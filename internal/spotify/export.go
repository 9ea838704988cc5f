package spotify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"

	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/model"
)

// pageSize is the largest page the saved-tracks endpoint serves.
const pageSize = 50

// Exporter reads the user's liked songs.
type Exporter struct {
	api    *spotify.Client
	logger *log.Logger
}

// NewExporter wraps a user-authorized client.
func NewExporter(api *spotify.Client, logger *log.Logger) *Exporter {
	return &Exporter{api: api, logger: logging.OrDiscard(logger)}
}

// LikedTracks pages through the whole library, newest first, and converts
// each saved track into a catalogue record.
func (e *Exporter) LikedTracks(ctx context.Context) ([]model.TrackRecord, error) {
	page, err := e.api.CurrentUsersTracks(ctx, spotify.Limit(pageSize))
	if err != nil {
		return nil, fmt.Errorf("fetching liked songs: %w", err)
	}

	var records []model.TrackRecord
	for {
		for _, saved := range page.Tracks {
			records = append(records, convertTrack(saved))
		}
		e.logger.Debug("fetched liked songs", "count", len(records), "total", page.Total)

		err = e.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}

	e.logger.Info("fetched liked songs", "count", len(records))
	return records, nil
}

func convertTrack(saved spotify.SavedTrack) model.TrackRecord {
	artists := make([]string, len(saved.Artists))
	for i, a := range saved.Artists {
		artists[i] = a.Name
	}

	var cover string
	if len(saved.Album.Images) > 0 {
		cover = saved.Album.Images[0].URL
	}

	return model.TrackRecord{
		Title:       saved.Name,
		Artist:      strings.Join(artists, ", "),
		Album:       saved.Album.Name,
		TrackNumber: strconv.Itoa(int(saved.TrackNumber)),
		DiscNumber:  strconv.Itoa(int(saved.DiscNumber)),
		ReleaseDate: saved.Album.ReleaseDate,
		CoverURL:    cover,
	}
}
