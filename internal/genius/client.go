// Package genius implements the Genius catalog adapter over the /search endpoint.
package genius

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/auth"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

const (
	// Name is the catalog identifier.
	Name = "genius"

	// DefaultBaseURL is the Genius API root.
	DefaultBaseURL = "https://api.genius.com"

	// DefaultQuery is searched when the query has no terms.
	DefaultQuery = "popular"

	maxPerPage = 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Tokens supplies the client access token; usually an auth.StaticToken.
	Tokens         auth.TokenSource
	PlaceholderArt string
	DefaultLimit   int
	HTTP           upstream.Options
}

// Client searches Genius for songs. Genius has no audio, so previews are always nil.
type Client struct {
	http         *upstream.Client
	tokens       auth.TokenSource
	placeholder  string
	defaultLimit int
	logger       *log.Logger
}

// New creates a Genius source.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = maxPerPage
	}
	if cfg.HTTP.Logger == nil {
		cfg.HTTP.Logger = log.Default()
	}
	cfg.HTTP.ErrorDecoder = decodeError

	return &Client{
		http:         upstream.New(Name, cfg.BaseURL, cfg.HTTP),
		tokens:       cfg.Tokens,
		placeholder:  cfg.PlaceholderArt,
		defaultLimit: cfg.DefaultLimit,
		logger:       cfg.HTTP.Logger.With("catalog", Name),
	}
}

// Name implements songs.Source.
func (c *Client) Name() string {
	return Name
}

// CheckConfig implements songs.Source. A static token source is consulted
// without network I/O.
func (c *Client) CheckConfig() error {
	if st, ok := c.tokens.(auth.StaticToken); ok {
		_, err := st.Token(context.Background())
		return err
	}
	if c.tokens == nil {
		return songs.RequireSecrets(Name, "GENIUS_ACCESS_TOKEN", "")
	}
	return nil
}

// FetchSongs implements songs.Source.
func (c *Client) FetchSongs(ctx context.Context, q songs.Query) ([]songs.Song, error) {
	if err := c.CheckConfig(); err != nil {
		return nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	terms := q.Terms()
	if terms == "" {
		terms = DefaultQuery
	}

	var resp searchResponse
	err = c.http.GetJSON(ctx, upstream.Request{
		Path: "/search",
		Query: map[string]string{
			"q":        terms,
			"per_page": strconv.Itoa(min(q.PageSize(c.defaultLimit), maxPerPage)),
		},
		Bearer: token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Response == nil || resp.Response.Hits == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing response.hits")
	}

	out := make([]songs.Song, 0, len(resp.Response.Hits))
	for _, hit := range resp.Response.Hits {
		if hit.Type != "song" {
			continue
		}
		song, ok := convertSong(hit.Result, c.placeholder)
		if !ok {
			c.logger.Debug("skipping malformed hit", "id", hit.Result.ID)
			continue
		}
		out = append(out, song)
	}

	return songs.Dedupe(out), nil
}

// decodeError reads {"meta":{"status":401,"message":".."}} and OAuth-style
// {"error":"invalid_token","error_description":".."} bodies.
func decodeError(body []byte) string {
	var env struct {
		Meta struct {
			Message string `json:"message"`
		} `json:"meta"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	switch {
	case env.Meta.Message != "":
		return env.Meta.Message
	case env.ErrorDescription != "":
		return env.ErrorDescription
	default:
		return env.Error
	}
}

var _ songs.Source = (*Client)(nil)
