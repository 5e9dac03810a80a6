package genius

import (
	"strconv"

	"github.com/justestif/go-song-swiper/internal/songs"
)

type searchResponse struct {
	Response *struct {
		Hits []rawHit `json:"hits"`
	} `json:"response"`
}

type rawHit struct {
	Type   string  `json:"type"`
	Result rawSong `json:"result"`
}

type rawSong struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	SongArtImageURL string `json:"song_art_image_url"`
	HeaderImageURL  string `json:"header_image_url"`
	PrimaryArtist   struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
}

// convertSong maps a search hit to a Song, preferring song art over the header image.
func convertSong(s rawSong, placeholder string) (songs.Song, bool) {
	if s.ID == 0 {
		return songs.Song{}, false
	}

	art := s.SongArtImageURL
	if art == "" {
		art = s.HeaderImageURL
	}

	return songs.Normalize(songs.Song{
		ID:          strconv.FormatInt(s.ID, 10),
		Title:       s.Title,
		Artist:      s.PrimaryArtist.Name,
		AlbumArtURL: art,
	}, placeholder)
}
