package spotify

import (
	"context"
	"net/http"
	"strconv"

	"github.com/justestif/go-song-swiper/internal/upstream"
)

// playlistTracks reads the first page of the configured chart playlist.
func (c *Client) playlistTracks(ctx context.Context, token string, limit int) ([]rawTrack, error) {
	var resp playlistTracksResponse
	err := c.http.GetJSON(ctx, upstream.Request{
		Path:   "/playlists/" + c.topPlaylistID + "/tracks",
		Query:  map[string]string{"limit": strconv.Itoa(limit)},
		Bearer: token,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Items == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing items")
	}

	tracks := make([]rawTrack, 0, len(resp.Items))
	for _, item := range resp.Items {
		// Removed or unavailable tracks come back as null.
		if item.Track == nil {
			continue
		}
		tracks = append(tracks, *item.Track)
	}
	return tracks, nil
}

// searchTracks runs a track search for terms.
func (c *Client) searchTracks(ctx context.Context, token, terms string, limit int) ([]rawTrack, error) {
	var resp searchResponse
	err := c.http.GetJSON(ctx, upstream.Request{
		Path: "/search",
		Query: map[string]string{
			"q":     terms,
			"type":  "track",
			"limit": strconv.Itoa(limit),
		},
		Bearer: token,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Tracks == nil || resp.Tracks.Items == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing tracks.items")
	}
	return resp.Tracks.Items, nil
}
