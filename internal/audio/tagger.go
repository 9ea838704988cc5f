package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/charmbracelet/log"

	"github.com/handiism/songsync/internal/http"
	ioutils "github.com/handiism/songsync/internal/io"
	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/model"
)

var (
	// ErrWriteFailed is returned when the tag cannot be opened or saved.
	// The track counts as failed.
	ErrWriteFailed = errors.New("tag write failed")

	// ErrCoverFetchFailed is reported in Result.CoverErr. It never fails
	// the track; the previous cover is kept.
	ErrCoverFetchFailed = errors.New("cover fetch failed")
)

// legacyYearFrame is the ID3v2.3 year frame, superseded by TDRC in v2.4.
const legacyYearFrame = "TYER"

// TagConfig holds tagging configuration.
//
// Example:
//
//	cfg := &TagConfig{
//	    GenreSeparator: "; ",   // "Rock; Art Rock"
//	    LyricsLanguage: "eng",  // USLT language code
//	    EmbedCover:     true,
//	    Cover:          ioutils.CoverOptions{Resize: true, MaxSize: 1000, ConvertToJPEG: true},
//	}
type TagConfig struct {
	// GenreSeparator joins multiple genres into the single TCON value.
	GenreSeparator string

	// LyricsLanguage is the ISO 639-2 code stored in the USLT frame.
	LyricsLanguage string

	// EmbedCover enables fetching and embedding the record's cover URL.
	EmbedCover bool

	// Cover controls resizing and conversion of the fetched image.
	Cover ioutils.CoverOptions
}

// DefaultTagConfig returns the default tag configuration.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		GenreSeparator: "; ",
		LyricsLanguage: "eng",
		EmbedCover:     true,
		Cover: ioutils.CoverOptions{
			Resize:        true,
			MaxSize:       1000,
			ConvertToJPEG: true,
		},
	}
}

// Result describes what an Apply call changed besides the text fields.
type Result struct {
	CoverUpdated  bool
	LyricsUpdated bool

	// CoverErr wraps ErrCoverFetchFailed when the cover could not be
	// fetched or prepared.
	CoverErr error
}

// Tagger writes ID3v2.4 tags to MP3 files.
//
// Every Apply is a full replace of the targeted fields, done in a single
// open/modify/save cycle:
//   - Title, Artist, Album, Track number, Disc number: always replaced
//   - Year: replaced when the release date has one, otherwise untouched
//   - Genre: always replaced, with an empty value when nothing resolved
//   - Cover: replaced when the fetch succeeds, otherwise untouched
//   - Lyrics: replaced when resolved, otherwise untouched
//
// Applying the same inputs twice leaves the file with the same tag.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig(), http.NewClient(""), logger)
//	res, err := tagger.Apply(ctx, asset.Path, rec, genres, lyrics)
//	if res.CoverErr != nil {
//	    logger.Warn("cover", "err", res.CoverErr)
//	}
type Tagger struct {
	config *TagConfig
	client *http.Client
	images *ioutils.ImageService
	logger *log.Logger
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used. client fetches covers and
// may be nil when covers are disabled.
func NewTagger(config *TagConfig, client *http.Client, logger *log.Logger) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	if client == nil {
		client = http.NewClient("")
	}
	return &Tagger{
		config: config,
		client: client,
		images: ioutils.NewImageService(),
		logger: logging.OrDiscard(logger),
	}
}

// Apply builds the TagSet for rec and writes it to the file at path.
// lyrics is the resolved text, or "" when none was found.
func (t *Tagger) Apply(ctx context.Context, path string, rec model.TrackRecord, genres []string, lyrics string) (Result, error) {
	set := model.NewTagSet(rec, genres, lyrics)

	var res Result
	if t.config.EmbedCover && rec.CoverURL != "" {
		cover, mime, err := t.fetchCover(ctx, rec.CoverURL)
		if err != nil {
			res.CoverErr = fmt.Errorf("%w: %w", ErrCoverFetchFailed, err)
			t.logger.Warn("cover not updated", "track", rec.String(), "err", err)
		} else {
			set.Cover, set.CoverMIME = cover, mime
		}
	}

	if err := t.Write(path, set); err != nil {
		return res, err
	}

	res.CoverUpdated = len(set.Cover) > 0
	res.LyricsUpdated = set.Lyrics != ""
	return res, nil
}

func (t *Tagger) fetchCover(ctx context.Context, url string) ([]byte, string, error) {
	data, err := t.client.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}
	return t.images.PrepareCover(ctx, data, t.config.Cover)
}

// Write stores set in the file at path in one save.
func (t *Tagger) Write(path string, set model.TagSet) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetTitle(set.Title)
	tag.SetArtist(set.Artist)
	tag.SetAlbum(set.Album)
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, set.TrackNumber)
	tag.AddTextFrame(tag.CommonID("Part of a set"), id3v2.EncodingUTF8, set.DiscNumber)

	if set.Year != "" {
		tag.DeleteFrames(legacyYearFrame)
		tag.SetYear(set.Year)
	}

	tag.SetGenre(strings.Join(set.Genres, t.config.GenreSeparator))

	if len(set.Cover) > 0 {
		mime := set.CoverMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     set.Cover,
		})
	}

	if set.Lyrics != "" {
		tag.DeleteFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          t.config.LyricsLanguage,
			ContentDescriptor: "",
			Lyrics:            set.Lyrics,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// ReadTagSet reads the fields written by Tagger back from a file. Genres
// are split with sep.
func ReadTagSet(path, sep string) (model.TagSet, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return model.TagSet{}, err
	}
	defer tag.Close()

	set := model.TagSet{
		Title:       tag.Title(),
		Artist:      tag.Artist(),
		Album:       tag.Album(),
		TrackNumber: textFrame(tag, tag.CommonID("Track number/Position in set")),
		DiscNumber:  textFrame(tag, tag.CommonID("Part of a set")),
		Year:        tag.Year(),
	}

	if g := tag.Genre(); g != "" && sep != "" {
		for _, part := range strings.Split(g, sep) {
			if part = strings.TrimSpace(part); part != "" {
				set.Genres = append(set.Genres, part)
			}
		}
	} else if g != "" {
		set.Genres = []string{g}
	}

	for _, f := range tag.GetFrames(tag.CommonID("Attached picture")) {
		if pic, ok := f.(id3v2.PictureFrame); ok {
			set.Cover = pic.Picture
			set.CoverMIME = pic.MimeType
			break
		}
	}

	for _, f := range tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription")) {
		if uslt, ok := f.(id3v2.UnsynchronisedLyricsFrame); ok {
			set.Lyrics = uslt.Lyrics
			break
		}
	}

	return set, nil
}

func textFrame(tag *id3v2.Tag, id string) string {
	if f, ok := tag.GetLastFrame(id).(id3v2.TextFrame); ok {
		return f.Text
	}
	return ""
}
