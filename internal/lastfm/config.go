// Package lastfm provides the Last.fm catalog adapter: top charts, tag charts,
// track search and similar tracks.
package lastfm

import (
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

const (
	// Name is the catalog identifier.
	Name = "lastfm"

	// DefaultBaseURL is the Last.fm REST root.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultSimilarLimit is the number of similar tracks requested when none is given.
	DefaultSimilarLimit = 10

	defaultLimit = 50
)

// Config holds Last.fm API configuration.
type Config struct {
	BaseURL string
	// APIKey is read on every call.
	APIKey         func() string
	PlaceholderArt string
	DefaultLimit   int
	HTTP           upstream.Options
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = defaultLimit
	}
	if c.APIKey == nil {
		c.APIKey = func() string { return "" }
	}
	return c
}

// checkKey returns a *songs.ConfigError when the API key is unset.
func checkKey(key string) error {
	return songs.RequireSecrets(Name, "LASTFM_API_KEY", key)
}
