package lastfm

import (
	"bytes"
	"encoding/json"
)

// rawTrack is a track as returned by chart, tag, search and similar methods.
type rawTrack struct {
	Name   string     `json:"name"`
	MBID   string     `json:"mbid"`
	Artist rawArtist  `json:"artist"`
	Image  []rawImage `json:"image"`
}

// rawArtist is an object in chart/tag/similar results but a bare string in
// track.search results.
type rawArtist struct {
	Name string `json:"name"`
}

func (a *rawArtist) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &a.Name)
	}
	type plain rawArtist
	return json.Unmarshal(data, (*plain)(a))
}

type rawImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// trackList decodes Last.fm's "track" field, which is an object instead of an
// array when there is exactly one result.
type trackList []rawTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte(`{`)) {
		var one rawTrack
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = trackList{one}
		return nil
	}
	var many []rawTrack
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if many == nil {
		many = []rawTrack{}
	}
	*l = many
	return nil
}

// tracksResponse is the JSON response for chart.getTopTracks and tag.getTopTracks.
type tracksResponse struct {
	Tracks *struct {
		Track trackList `json:"track"`
	} `json:"tracks"`
}

// searchResponse is the JSON response for track.search.
type searchResponse struct {
	Results *struct {
		TrackMatches *struct {
			Track trackList `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// similarResponse is the JSON response for track.getSimilar.
type similarResponse struct {
	SimilarTracks *struct {
		Track trackList `json:"track"`
	} `json:"similartracks"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
