// Package sources builds the one catalog Source a deployment serves from.
package sources

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/auth"
	"github.com/justestif/go-song-swiper/internal/config"
	"github.com/justestif/go-song-swiper/internal/genius"
	"github.com/justestif/go-song-swiper/internal/lastfm"
	"github.com/justestif/go-song-swiper/internal/mediafilter"
	"github.com/justestif/go-song-swiper/internal/recommend"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/spotify"
	"github.com/justestif/go-song-swiper/internal/upstream"
	"github.com/justestif/go-song-swiper/internal/youtube"
)

// Names lists the catalogs that can be selected with catalog.source.
var Names = []string{spotify.Name, youtube.Name, lastfm.Name, genius.Name, recommend.Name}

// Build creates the Source named by cfg.Catalog.Source. Credentials are not
// required here; each call reads them from secrets.
func Build(cfg *config.Config, secrets config.Secrets, logger *log.Logger) (songs.Source, error) {
	if logger == nil {
		logger = log.Default()
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Catalog.Source))
	httpOpts := upstream.Options{
		Timeout:   cfg.Catalog.Timeout.Duration,
		RateLimit: cfg.Catalog.RateLimit,
		Logger:    logger,
	}
	lookup := func(key string) func() string {
		return func() string { return secrets.Lookup(key) }
	}

	switch name {
	case spotify.Name:
		creds := SpotifyCredentials(secrets)
		return spotify.New(spotify.Config{
			Credentials: creds,
			Tokens: auth.NewTokenCache(auth.TokenCacheConfig{
				Catalog:      spotify.Name,
				TokenURL:     auth.SpotifyTokenURL,
				Credentials:  creds,
				SafetyMargin: cfg.Token.SafetyMargin.Duration,
				FixedTTL:     cfg.Token.FixedTTL.Duration,
				Timeout:      cfg.Catalog.Timeout.Duration,
				Logger:       logger,
			}),
			Filter:         Filter(cfg),
			TopPlaylistID:  cfg.Spotify.TopPlaylistID,
			RequirePreview: cfg.Spotify.RequirePreview,
			PlaceholderArt: cfg.Catalog.PlaceholderArt,
			DefaultLimit:   cfg.Catalog.Limit,
			HTTP:           httpOpts,
		}), nil

	case youtube.Name:
		return youtube.New(youtube.Config{
			APIKey:         lookup(config.EnvYouTubeKey),
			Filter:         Filter(cfg),
			RegionCode:     cfg.YouTube.RegionCode,
			CategoryID:     cfg.YouTube.CategoryID,
			PlaceholderArt: cfg.Catalog.PlaceholderArt,
			DefaultLimit:   cfg.Catalog.Limit,
			HTTP:           httpOpts,
		}), nil

	case lastfm.Name:
		return lastfm.NewClient(lastfm.Config{
			APIKey:         lookup(config.EnvLastfmKey),
			PlaceholderArt: cfg.Catalog.PlaceholderArt,
			DefaultLimit:   cfg.Catalog.Limit,
			HTTP:           httpOpts,
		}), nil

	case genius.Name:
		return genius.New(genius.Config{
			Tokens: auth.StaticToken{
				Catalog: genius.Name,
				Name:    config.EnvGeniusToken,
				Lookup:  lookup(config.EnvGeniusToken),
			},
			PlaceholderArt: cfg.Catalog.PlaceholderArt,
			DefaultLimit:   cfg.Catalog.Limit,
			HTTP:           httpOpts,
		}), nil

	case recommend.Name:
		return recommend.NewSource(Generator(cfg, secrets), cfg.Catalog.PlaceholderArt, 0, logger), nil
	}

	return nil, fmt.Errorf("unknown catalog source %q (want one of %s)", cfg.Catalog.Source, strings.Join(Names, ", "))
}

// Valid reports whether name is a supported catalog.
func Valid(name string) bool {
	return slices.Contains(Names, strings.ToLower(strings.TrimSpace(name)))
}

// Filter builds the duration filter from cfg.
func Filter(cfg *config.Config) *mediafilter.Filter {
	return mediafilter.New(cfg.Filter.MinSeconds, cfg.Filter.MaxSeconds, cfg.Filter.Keywords)
}

// Generator builds the Gemini generator from cfg.
func Generator(cfg *config.Config, secrets config.Secrets) *recommend.Gemini {
	return recommend.NewGemini(func() string { return secrets.Lookup(config.EnvGeminiKey) }, cfg.Gemini.Model)
}

// SpotifyCredentials reads the Spotify client id/secret pair on every call.
func SpotifyCredentials(secrets config.Secrets) auth.Credentials {
	return func() (string, string) {
		return secrets.Lookup(config.EnvSpotifyID), secrets.Lookup(config.EnvSpotifySecret)
	}
}
