// Package catalogue reads and writes the CSV track catalogue.
//
// A catalogue is a header row followed by one row per track. Both the
// English export headers ("Track Name", "Artist Name(s)", ...) and the
// Italian ones ("Nome della traccia", "Nome dell'artista", ...) are
// recognized, and the delimiter is sniffed from the start of the file.
//
//	r, err := catalogue.Open("liked_songs.csv")
//	for {
//	    rec, err := r.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
package catalogue
