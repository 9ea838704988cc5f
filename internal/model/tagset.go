package model

// TagSet is the complete set of fields written to a local audio file.
//
// Writing a TagSet replaces each targeted field; nothing is merged with the
// values already present in the file. Two fields have special absence rules:
//   - Genres: nil or empty still replaces the field with an empty value
//   - Lyrics and Cover: empty means "leave the previous value untouched"
//   - Year: empty means the release date had no year, the field is not touched
type TagSet struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber string
	DiscNumber  string
	Year        string
	Genres      []string
	Cover       []byte
	CoverMIME   string
	Lyrics      string
}

// NewTagSet builds the text fields of a TagSet from a record and the
// enrichment results. Cover bytes are attached later by the tagger.
func NewTagSet(rec TrackRecord, genres []string, lyrics string) TagSet {
	return TagSet{
		Title:       rec.Title,
		Artist:      rec.Artist,
		Album:       rec.Album,
		TrackNumber: rec.TrackNumber,
		DiscNumber:  rec.DiscNumber,
		Year:        rec.Year(),
		Genres:      genres,
		Lyrics:      lyrics,
	}
}
