package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for catalog credentials.
const (
	EnvSpotifyID     = "SPOTIFY_ID"
	EnvSpotifySecret = "SPOTIFY_SECRET"
	EnvYouTubeKey    = "YOUTUBE_API_KEY"
	EnvLastfmKey     = "LASTFM_API_KEY"
	EnvGeniusToken   = "GENIUS_ACCESS_TOKEN"
	EnvGeminiKey     = "GEMINI_API_KEY"
)

// Secrets looks up a credential by name at the time it is needed.
type Secrets interface {
	Lookup(name string) string
}

// EnvSecrets reads credentials from the process environment on every call.
type EnvSecrets struct{}

// Lookup implements Secrets.
func (EnvSecrets) Lookup(name string) string {
	return os.Getenv(name)
}

// StaticSecrets is a fixed credential map, used by tests and one-shot CLI runs.
type StaticSecrets map[string]string

// Lookup implements Secrets.
func (s StaticSecrets) Lookup(name string) string {
	return s[name]
}

// LoadDotEnv loads variables from the given .env file without overriding
// variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
