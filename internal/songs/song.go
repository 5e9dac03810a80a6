// Package songs defines the catalog-neutral song record shared by every source adapter.
package songs

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPlaceholderArt is used when a catalog has no artwork for an item.
const DefaultPlaceholderArt = "https://placehold.co/600x600.png"

// MaxLimit is the largest page size any catalog accepts in one call.
const MaxLimit = 50

// Song is the normalized read model returned to the swipe UI.
type Song struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	AlbumArtURL string  `json:"albumArtUrl"`
	PreviewURL  *string `json:"previewUrl"`
}

// Query narrows what a Source fetches. All fields are optional.
type Query struct {
	Mood     string
	Genre    string
	Keywords string
	Limit    int
}

// Terms joins the non-empty query parts into one search string.
func (q Query) Terms() string {
	var parts []string
	for _, p := range []string{q.Mood, q.Genre, q.Keywords} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether the query should fall back to the catalog's popular chart.
func (q Query) IsEmpty() bool {
	return q.Terms() == ""
}

// PageSize clamps Limit to [1, MaxLimit], substituting def when Limit is unset.
func (q Query) PageSize(def int) int {
	n := q.Limit
	if n <= 0 {
		n = def
	}
	return min(max(n, 1), MaxLimit)
}

// Source fetches songs from one backing catalog.
type Source interface {
	// Name returns the catalog identifier (e.g. "spotify").
	Name() string

	// CheckConfig reports a *ConfigError if required credentials are absent.
	// It never performs network I/O.
	CheckConfig() error

	// FetchSongs returns normalized songs. Malformed items are dropped; a malformed
	// envelope or non-2xx upstream response fails the whole call.
	FetchSongs(ctx context.Context, q Query) ([]Song, error)
}

// Normalize trims fields and substitutes placeholder art.
// It reports false if the item is missing an ID, title or artist.
func Normalize(s Song, placeholder string) (Song, bool) {
	s.ID = strings.TrimSpace(s.ID)
	s.Title = strings.TrimSpace(s.Title)
	s.Artist = strings.TrimSpace(s.Artist)
	if s.ID == "" || s.Title == "" || s.Artist == "" {
		return Song{}, false
	}

	s.AlbumArtURL = strings.TrimSpace(s.AlbumArtURL)
	if s.AlbumArtURL == "" {
		s.AlbumArtURL = placeholder
		if s.AlbumArtURL == "" {
			s.AlbumArtURL = DefaultPlaceholderArt
		}
	}

	if s.PreviewURL != nil && strings.TrimSpace(*s.PreviewURL) == "" {
		s.PreviewURL = nil
	}

	return s, true
}

// CompositeID synthesizes an identifier for catalogs without a stable one.
func CompositeID(title, artist string) string {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s", title, artist)
}

// JoinArtists joins multiple artist names for display.
func JoinArtists(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, ", ")
}

// Dedupe removes songs with a repeated ID, keeping the first occurrence.
// It never returns nil.
func Dedupe(list []Song) []Song {
	seen := make(map[string]struct{}, len(list))
	out := make([]Song, 0, len(list))
	for _, s := range list {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
