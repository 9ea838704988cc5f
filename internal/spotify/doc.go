// Package spotify talks to the Spotify Web API.
//
// It serves two features. The GenreSource identifies artists through
// catalogue search and classifies them by their Spotify genres, using an app
// token from the client credentials grant. The Exporter reads the user's
// liked songs into catalogue records, which needs a user token obtained by
// the Authenticator:
//
//	auth, err := spotify.NewAuthenticator(settings.Spotify, logger)
//	client, err := auth.Authenticate(ctx)
//	records, err := spotify.NewExporter(client, logger).LikedTracks(ctx)
//	err = catalogue.Write("liked_songs.csv", records)
package spotify
