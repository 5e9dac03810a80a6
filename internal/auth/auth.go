package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/justestif/go-song-swiper/internal/songs"
)

const (
	// SpotifyTokenURL is the accounts endpoint for both grant types.
	SpotifyTokenURL = spotifyauth.TokenURL

	// DefaultRedirectURI uses explicit IPv4 loopback as required by Spotify for local development.
	// See: https://developer.spotify.com/documentation/web-api/concepts/redirect-uri
	DefaultRedirectURI = "http://127.0.0.1:8080/callback"
)

var (
	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrMissingState is returned when the callback arrives without a state cookie.
	ErrMissingState = errors.New("missing OAuth state")
)

// NewSpotifyAuthenticator builds the authorization-code authenticator used for
// user sign-in and playlist creation. Returns a *songs.ConfigError if either
// credential is empty.
func NewSpotifyAuthenticator(clientID, clientSecret, redirectURI string) (*spotifyauth.Authenticator, error) {
	if err := songs.RequireSecrets("spotify", "SPOTIFY_ID", clientID, "SPOTIFY_SECRET", clientSecret); err != nil {
		return nil, err
	}
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	return spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
	), nil
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CheckState compares the state stored before the redirect with the one
// returned on the callback.
func CheckState(stored, returned string) error {
	if stored == "" {
		return ErrMissingState
	}
	if returned != stored {
		return ErrStateMismatch
	}
	return nil
}
