package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors wrapped by *songs.UpstreamError.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidParams is returned when Last.fm rejects the parameters, for
	// example an unknown track passed to track.getSimilar.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrMissingSeed is returned by SimilarTracks when artist or track is empty.
	ErrMissingSeed = errors.New("artist and track are required")
)

// blankImageID identifies the grey star Last.fm serves when a track has no artwork.
const blankImageID = "2a96cbd8b46e442fc41c2b86b821562f"

// Client is a Last.fm API client with caching of similar-track lookups.
type Client struct {
	http         *upstream.Client
	apiKey       func() string
	placeholder  string
	defaultLimit int
	logger       *log.Logger

	// In-memory cache: key = "similar:{artist}:{track}:{limit}"
	cache   map[string][]songs.Song
	cacheMu sync.RWMutex
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	if cfg.HTTP.Logger == nil {
		cfg.HTTP.Logger = log.Default()
	}
	cfg.HTTP.ErrorDecoder = decodeError

	return &Client{
		http:         upstream.New(Name, cfg.BaseURL, cfg.HTTP),
		apiKey:       cfg.APIKey,
		placeholder:  cfg.PlaceholderArt,
		defaultLimit: cfg.DefaultLimit,
		logger:       cfg.HTTP.Logger.With("catalog", Name),
		cache:        make(map[string][]songs.Song),
	}
}

// Name implements songs.Source.
func (c *Client) Name() string {
	return Name
}

// CheckConfig implements songs.Source.
func (c *Client) CheckConfig() error {
	return checkKey(c.apiKey())
}

// FetchSongs implements songs.Source. An empty query reads the global chart,
// keywords go to track search, and a genre or mood reads that tag's chart
// (genre preferred).
func (c *Client) FetchSongs(ctx context.Context, q songs.Query) ([]songs.Song, error) {
	key := c.apiKey()
	if err := checkKey(key); err != nil {
		return nil, err
	}

	params := map[string]string{
		"limit": strconv.Itoa(q.PageSize(c.defaultLimit)),
	}

	var (
		tracks trackList
		err    error
	)
	switch {
	case strings.TrimSpace(q.Keywords) != "":
		params["method"] = "track.search"
		params["track"] = q.Terms()
		tracks, err = c.search(ctx, key, params)
	case strings.TrimSpace(q.Genre) != "" || strings.TrimSpace(q.Mood) != "":
		tag := strings.TrimSpace(q.Genre)
		if tag == "" {
			tag = strings.TrimSpace(q.Mood)
		}
		params["method"] = "tag.getTopTracks"
		params["tag"] = tag
		tracks, err = c.topTracks(ctx, key, params)
	default:
		params["method"] = "chart.getTopTracks"
		tracks, err = c.topTracks(ctx, key, params)
	}
	if err != nil {
		return nil, err
	}

	return c.convertAll(tracks), nil
}

// SimilarTracks returns tracks similar to the given seed. Results are cached
// in memory for the life of the process.
func (c *Client) SimilarTracks(ctx context.Context, artist, track string, limit int) ([]songs.Song, error) {
	key := c.apiKey()
	if err := checkKey(key); err != nil {
		return nil, err
	}

	artist = strings.TrimSpace(artist)
	track = strings.TrimSpace(track)
	if artist == "" || track == "" {
		return nil, ErrMissingSeed
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	limit = min(limit, songs.MaxLimit)

	cacheKey := fmt.Sprintf("similar:%s:%s:%d", strings.ToLower(artist), strings.ToLower(track), limit)

	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	body, err := c.doRequest(ctx, key, map[string]string{
		"method":      "track.getSimilar",
		"artist":      artist,
		"track":       track,
		"autocorrect": "1",
		"limit":       strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}

	var resp similarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.http.Malformed(http.StatusOK, fmt.Sprintf("parsing similar tracks: %v", err))
	}
	if resp.SimilarTracks == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing similartracks")
	}

	result := c.convertAll(resp.SimilarTracks.Track)

	c.cacheMu.Lock()
	c.cache[cacheKey] = result
	c.cacheMu.Unlock()

	return result, nil
}

func (c *Client) topTracks(ctx context.Context, key string, params map[string]string) (trackList, error) {
	body, err := c.doRequest(ctx, key, params)
	if err != nil {
		return nil, err
	}

	var resp tracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.http.Malformed(http.StatusOK, fmt.Sprintf("parsing tracks: %v", err))
	}
	if resp.Tracks == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing tracks")
	}
	return resp.Tracks.Track, nil
}

func (c *Client) search(ctx context.Context, key string, params map[string]string) (trackList, error) {
	body, err := c.doRequest(ctx, key, params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.http.Malformed(http.StatusOK, fmt.Sprintf("parsing search results: %v", err))
	}
	if resp.Results == nil || resp.Results.TrackMatches == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing results.trackmatches")
	}
	return resp.Results.TrackMatches.Track, nil
}

// doRequest performs a single GET and converts Last.fm's in-body error
// envelope into an upstream error. Rate limiting is handled by the shared
// limiter rather than by retrying.
func (c *Client) doRequest(ctx context.Context, key string, params map[string]string) ([]byte, error) {
	query := make(map[string]string, len(params)+2)
	for k, v := range params {
		query[k] = v
	}
	query["api_key"] = key
	query["format"] = "json"

	body, err := c.http.Get(ctx, upstream.Request{Path: "/", Query: query})
	if err != nil {
		return nil, err
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return nil, c.apiFailure(apiErr)
	}

	return body, nil
}

func (c *Client) apiFailure(apiErr apiError) error {
	var sentinel error
	switch apiErr.Error {
	case errCodeRateLimited:
		sentinel = ErrRateLimited
	case errCodeInvalidAPIKey:
		sentinel = ErrInvalidAPIKey
	case errCodeInvalidParams:
		sentinel = ErrInvalidParams
	}
	c.logger.Warn("api error", "code", apiErr.Error, "message", apiErr.Message)
	return &songs.UpstreamError{
		Catalog: Name,
		Status:  http.StatusOK,
		Reason:  fmt.Sprintf("API error %d: %s", apiErr.Error, apiErr.Message),
		Err:     sentinel,
	}
}

func (c *Client) convertAll(tracks trackList) []songs.Song {
	out := make([]songs.Song, 0, len(tracks))
	for _, t := range tracks {
		song, ok := convertTrack(t, c.placeholder)
		if !ok {
			c.logger.Debug("skipping malformed track", "name", t.Name)
			continue
		}
		out = append(out, song)
	}
	return songs.Dedupe(out)
}

// convertTrack maps a Last.fm track to a Song. Tracks without an mbid get a
// composite title-artist ID. Last.fm never offers previews.
func convertTrack(t rawTrack, placeholder string) (songs.Song, bool) {
	id := strings.TrimSpace(t.MBID)
	if id == "" {
		id = songs.CompositeID(t.Name, t.Artist.Name)
	}
	return songs.Normalize(songs.Song{
		ID:          id,
		Title:       t.Name,
		Artist:      t.Artist.Name,
		AlbumArtURL: largestImage(t.Image),
	}, placeholder)
}

var imageRank = map[string]int{
	"small":      1,
	"medium":     2,
	"large":      3,
	"extralarge": 4,
	"mega":       5,
}

// largestImage returns the URL of the biggest non-blank image, or "".
func largestImage(images []rawImage) string {
	best, bestRank := "", -1
	for _, img := range images {
		if img.URL == "" || strings.Contains(img.URL, blankImageID) {
			continue
		}
		if r := imageRank[img.Size]; r > bestRank {
			best, bestRank = img.URL, r
		}
	}
	return best
}

// decodeError reads the {"error":N,"message":".."} body sent with 4xx/5xx responses.
func decodeError(body []byte) string {
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) != nil || apiErr.Message == "" {
		return ""
	}
	return apiErr.Message
}

var _ songs.Source = (*Client)(nil)
