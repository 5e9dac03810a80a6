// Package spotify provides the Spotify catalog adapter and user playlist helpers.
package spotify

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/auth"
	"github.com/justestif/go-song-swiper/internal/mediafilter"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

const (
	// Name is the catalog identifier.
	Name = "spotify"

	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	// DefaultTopPlaylistID is the Global Top 50 playlist used when the query is empty.
	DefaultTopPlaylistID = "37i9dQZEVXbMDoHDwVN2tF"

	defaultLimit = 50
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Credentials returns the client id/secret pair; checked before any outbound call.
	Credentials    auth.Credentials
	Tokens         auth.TokenSource
	Filter         *mediafilter.Filter
	TopPlaylistID  string
	RequirePreview bool
	PlaceholderArt string
	DefaultLimit   int
	HTTP           upstream.Options
}

// Client fetches tracks with a client-credentials token.
type Client struct {
	http           *upstream.Client
	credentials    auth.Credentials
	tokens         auth.TokenSource
	filter         *mediafilter.Filter
	topPlaylistID  string
	requirePreview bool
	placeholder    string
	defaultLimit   int
	logger         *log.Logger
}

// New creates a Spotify source.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TopPlaylistID == "" {
		cfg.TopPlaylistID = DefaultTopPlaylistID
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultLimit
	}
	if cfg.HTTP.Logger == nil {
		cfg.HTTP.Logger = log.Default()
	}
	cfg.HTTP.ErrorDecoder = upstream.NestedErrorMessage

	return &Client{
		http:           upstream.New(Name, cfg.BaseURL, cfg.HTTP),
		credentials:    cfg.Credentials,
		tokens:         cfg.Tokens,
		filter:         cfg.Filter,
		topPlaylistID:  cfg.TopPlaylistID,
		requirePreview: cfg.RequirePreview,
		placeholder:    cfg.PlaceholderArt,
		defaultLimit:   cfg.DefaultLimit,
		logger:         cfg.HTTP.Logger.With("catalog", Name),
	}
}

// Name implements songs.Source.
func (c *Client) Name() string {
	return Name
}

// CheckConfig implements songs.Source.
func (c *Client) CheckConfig() error {
	var id, secret string
	if c.credentials != nil {
		id, secret = c.credentials()
	}
	return songs.RequireSecrets(Name, "SPOTIFY_ID", id, "SPOTIFY_SECRET", secret)
}

// FetchSongs implements songs.Source. An empty query reads the top playlist;
// otherwise the terms are sent to track search.
func (c *Client) FetchSongs(ctx context.Context, q songs.Query) ([]songs.Song, error) {
	if err := c.CheckConfig(); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	limit := q.PageSize(c.defaultLimit)

	var tracks []rawTrack
	if q.IsEmpty() {
		tracks, err = c.playlistTracks(ctx, token, limit)
	} else {
		tracks, err = c.searchTracks(ctx, token, q.Terms(), limit)
	}
	if err != nil {
		c.invalidateOnUnauthorized(err)
		return nil, err
	}

	out := make([]songs.Song, 0, len(tracks))
	for _, t := range tracks {
		song, ok := c.accept(t)
		if !ok {
			continue
		}
		out = append(out, song)
	}

	return songs.Dedupe(out), nil
}

func (c *Client) accept(t rawTrack) (songs.Song, bool) {
	song, ok := convertTrack(t, c.placeholder)
	if !ok {
		c.logger.Debug("skipping malformed track", "id", t.ID)
		return songs.Song{}, false
	}
	if c.requirePreview && song.PreviewURL == nil {
		return songs.Song{}, false
	}
	if c.filter != nil {
		if v := c.filter.ClassifySeconds(t.DurationMs/1000, song.Title); v == mediafilter.Reject {
			c.logger.Debug("filtered track", "id", song.ID, "duration_ms", t.DurationMs)
			return songs.Song{}, false
		}
	}
	return song, true
}

// invalidateOnUnauthorized drops the cached token when a data endpoint rejects it.
func (c *Client) invalidateOnUnauthorized(err error) {
	var ue *songs.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusUnauthorized {
		return
	}
	if inv, ok := c.tokens.(auth.Invalidator); ok {
		c.logger.Warn("access token rejected, invalidating")
		inv.Invalidate()
	}
}

var _ songs.Source = (*Client)(nil)
