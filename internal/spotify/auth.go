package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/logging"
)

const callbackTimeout = 2 * time.Minute

var (
	// ErrMissingCredentials is returned when the client id or secret is empty.
	ErrMissingCredentials = errors.New("missing Spotify client id or secret")

	// ErrAuthTimeout is returned when the OAuth callback never arrives.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the callback state does not match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Authenticator runs the user authorization flow needed to read the
// liked-songs library.
type Authenticator struct {
	auth     *spotifyauth.Authenticator
	cache    *TokenCache
	redirect *url.URL
	logger   *log.Logger

	// OpenURL presents the authorization URL to the user.
	OpenURL func(authURL string)
}

// NewAuthenticator creates an Authenticator from the Spotify settings.
func NewAuthenticator(cfg config.SpotifySettings, logger *log.Logger) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid redirect uri %q", cfg.RedirectURI)
	}

	logger = logging.OrDiscard(logger)
	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(spotifyauth.ScopeUserLibraryRead),
	)

	return &Authenticator{
		auth:     auth,
		cache:    NewTokenCache(cfg.TokenPath),
		redirect: redirect,
		logger:   logger,
		OpenURL: func(authURL string) {
			logger.Info("open this URL in your browser to authorize", "url", authURL)
		},
	}, nil
}

// Authenticate returns a user-authorized client. A cached token is reused
// when it still works; otherwise the full authorization flow runs.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if token != nil {
		client := spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))
		if _, err := client.CurrentUser(ctx); err == nil {
			if refreshed, err := client.Token(); err == nil && refreshed.AccessToken != token.AccessToken {
				if err := a.cache.Save(refreshed); err != nil {
					a.logger.Warn("failed to cache refreshed token", "err", err)
				}
			}
			return client, nil
		}
		a.logger.Info("cached token rejected, authorizing again")
	}

	return a.authorize(ctx)
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}

func (a *Authenticator) authorize(ctx context.Context) (*spotify.Client, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(a.redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	listener, err := net.Listen("tcp", a.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.OpenURL(a.auth.AuthURL(state))

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(callbackTimeout):
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := a.cache.Save(token); err != nil {
		a.logger.Warn("failed to cache token", "err", err)
	}

	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true)), nil
}

func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, state string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != state {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		http.Error(w, "Authorization failed: "+msg, http.StatusBadRequest)
		errCh <- fmt.Errorf("spotify auth error: %s", msg)
		return
	}

	token, err := a.auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("exchanging code for token: %w", err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>songsync</title></head>
<body><p>Authorized. You can close this window and return to the terminal.</p></body>
</html>`)

	tokenCh <- token
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewAppClient returns a client authorized with the client credentials
// grant. It can read the catalogue (artists, search) but no user data.
func NewAppClient(ctx context.Context, cfg config.SpotifySettings) (*spotify.Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := cc.Token(ctx); err != nil {
		return nil, fmt.Errorf("requesting app token: %w", err)
	}

	return spotify.New(cc.Client(ctx), spotify.WithRetry(true)), nil
}
