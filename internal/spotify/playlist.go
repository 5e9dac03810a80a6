package spotify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const maxTracksPerRequest = 100

// UserClient wraps an authorization-code Spotify client acting for one user.
type UserClient struct {
	api *spotify.Client
}

// NewUserClient creates a UserClient.
// The underlying client should already be authenticated.
func NewUserClient(api *spotify.Client) *UserClient {
	return &UserClient{api: api}
}

// UserClientFor wraps an HTTP client that already carries the user's token,
// such as one from spotifyauth.Authenticator.Client. A non-empty apiURL
// replaces the Web API base URL and must end with a slash.
func UserClientFor(httpClient *http.Client, apiURL string) *UserClient {
	var opts []spotify.ClientOption
	if apiURL != "" {
		opts = append(opts, spotify.WithBaseURL(apiURL))
	}
	return NewUserClient(spotify.New(httpClient, opts...))
}

// CurrentUser returns the signed-in user's ID and display name.
func (c *UserClient) CurrentUser(ctx context.Context) (id, name string, err error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, user.DisplayName, nil
}

// Token returns the client's current token, which may have been refreshed.
func (c *UserClient) Token() (*oauth2.Token, error) {
	return c.api.Token()
}

// CreatePlaylist creates a new playlist for the current user.
// Returns the playlist ID.
func (c *UserClient) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	userID, _, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}

	return playlist.ID.String(), nil
}

// AddTracksToPlaylist adds tracks to a playlist, handling batching for large sets.
// Spotify allows max 100 tracks per request.
func (c *UserClient) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for _, b := range batches(len(ids), maxTracksPerRequest) {
		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids[b.start:b.end]...); err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", b.start+1, b.end, err)
		}
	}

	return nil
}

// CreatePlaylistWithTracks creates a playlist and fills it with trackIDs.
func (c *UserClient) CreatePlaylistWithTracks(ctx context.Context, name, description string, public bool, trackIDs []string) (string, error) {
	id, err := c.CreatePlaylist(ctx, name, description, public)
	if err != nil {
		return "", err
	}
	if err := c.AddTracksToPlaylist(ctx, id, trackIDs); err != nil {
		return id, err
	}
	return id, nil
}

type batch struct{ start, end int }

// batches splits n items into consecutive ranges of at most size.
func batches(n, size int) []batch {
	var out []batch
	for i := 0; i < n; i += size {
		out = append(out, batch{i, min(i+size, n)})
	}
	return out
}
