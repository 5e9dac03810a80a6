package youtube

import "github.com/justestif/go-song-swiper/internal/songs"

type rawVideo struct {
	ID             string            `json:"id"`
	Snippet        rawSnippet        `json:"snippet"`
	ContentDetails rawContentDetails `json:"contentDetails"`
}

type rawSnippet struct {
	Title        string                  `json:"title"`
	ChannelTitle string                  `json:"channelTitle"`
	Thumbnails   map[string]rawThumbnail `json:"thumbnails"`
}

type rawThumbnail struct {
	URL string `json:"url"`
}

type rawContentDetails struct {
	Duration string `json:"duration"`
}

type videoListResponse struct {
	Items []rawVideo `json:"items"`
}

type searchListResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// thumbnailOrder lists thumbnail keys from most to least preferred.
var thumbnailOrder = []string{"high", "medium", "default"}

// convertVideo maps a videos.list item to a Song. The channel title stands in
// for the artist and the preview is the embeddable player URL.
func convertVideo(v rawVideo, placeholder string) (songs.Song, bool) {
	var art string
	for _, size := range thumbnailOrder {
		if t, ok := v.Snippet.Thumbnails[size]; ok && t.URL != "" {
			art = t.URL
			break
		}
	}

	var preview *string
	if v.ID != "" {
		preview = songs.StringPtr(embedURL + v.ID)
	}

	return songs.Normalize(songs.Song{
		ID:          v.ID,
		Title:       v.Snippet.Title,
		Artist:      v.Snippet.ChannelTitle,
		AlbumArtURL: art,
		PreviewURL:  preview,
	}, placeholder)
}
