package spotify

import "github.com/justestif/go-song-swiper/internal/songs"

// rawTrack holds the track fields the adapter reads from the Web API.
type rawTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []rawArtist `json:"artists"`
	Album      rawAlbum    `json:"album"`
	PreviewURL *string     `json:"preview_url"`
	DurationMs int         `json:"duration_ms"`
	IsLocal    bool        `json:"is_local"`
}

type rawArtist struct {
	Name string `json:"name"`
}

type rawAlbum struct {
	Images []rawImage `json:"images"`
}

// rawImage is one album artwork size. Spotify lists the widest first.
type rawImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type playlistTracksResponse struct {
	Items []struct {
		Track *rawTrack `json:"track"`
	} `json:"items"`
}

type searchResponse struct {
	Tracks *struct {
		Items []rawTrack `json:"items"`
	} `json:"tracks"`
}

// convertTrack maps a Web API track to a Song.
// Local files and items missing an id, name or artist are rejected.
func convertTrack(t rawTrack, placeholder string) (songs.Song, bool) {
	if t.IsLocal {
		return songs.Song{}, false
	}

	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var art string
	if len(t.Album.Images) > 0 {
		art = t.Album.Images[0].URL
	}

	return songs.Normalize(songs.Song{
		ID:          t.ID,
		Title:       t.Name,
		Artist:      songs.JoinArtists(artists),
		AlbumArtURL: art,
		PreviewURL:  t.PreviewURL,
	}, placeholder)
}
