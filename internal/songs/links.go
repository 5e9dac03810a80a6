package songs

import (
	"fmt"
	"strings"
)

// ExternalURL returns the public page for a song ID in the given catalog,
// or "" when the catalog has no stable page for it.
func ExternalURL(catalog, id string) string {
	if id == "" {
		return ""
	}
	switch catalog {
	case "youtube":
		return "https://www.youtube.com/watch?v=" + id
	case "spotify":
		return "https://open.spotify.com/track/" + id
	case "genius":
		return "https://genius.com/songs/" + id
	default:
		return ""
	}
}

// ExportLines renders songs as "Title - Artist (link)" lines for the liked-list download.
func ExportLines(catalog string, list []Song) string {
	var b strings.Builder
	for _, s := range list {
		if link := ExternalURL(catalog, s.ID); link != "" {
			fmt.Fprintf(&b, "%s - %s (%s)\n", s.Title, s.Artist, link)
			continue
		}
		fmt.Fprintf(&b, "%s - %s\n", s.Title, s.Artist)
	}
	return b.String()
}
