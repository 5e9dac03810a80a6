// Package youtube implements the YouTube Data API v3 catalog adapter.
package youtube

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/mediafilter"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

const (
	// Name is the catalog identifier.
	Name = "youtube"

	// DefaultBaseURL is the YouTube Data API root.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// MusicCategoryID is the YouTube video category for music.
	MusicCategoryID = "10"

	embedURL = "https://www.youtube.com/embed/"

	defaultLimit  = 50
	defaultRegion = "US"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// APIKey is read on every call.
	APIKey         func() string
	Filter         *mediafilter.Filter
	RegionCode     string
	CategoryID     string
	PlaceholderArt string
	DefaultLimit   int
	HTTP           upstream.Options
}

// Client fetches music videos and keeps the ones that look like songs.
type Client struct {
	http         *upstream.Client
	apiKey       func() string
	filter       *mediafilter.Filter
	regionCode   string
	categoryID   string
	placeholder  string
	defaultLimit int
	logger       *log.Logger
}

// New creates a YouTube source. A nil Filter uses mediafilter.Default.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Filter == nil {
		cfg.Filter = mediafilter.Default()
	}
	if cfg.RegionCode == "" {
		cfg.RegionCode = defaultRegion
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = MusicCategoryID
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultLimit
	}
	if cfg.APIKey == nil {
		cfg.APIKey = func() string { return "" }
	}
	if cfg.HTTP.Logger == nil {
		cfg.HTTP.Logger = log.Default()
	}
	cfg.HTTP.ErrorDecoder = upstream.NestedErrorMessage

	return &Client{
		http:         upstream.New(Name, cfg.BaseURL, cfg.HTTP),
		apiKey:       cfg.APIKey,
		filter:       cfg.Filter,
		regionCode:   cfg.RegionCode,
		categoryID:   cfg.CategoryID,
		placeholder:  cfg.PlaceholderArt,
		defaultLimit: cfg.DefaultLimit,
		logger:       cfg.HTTP.Logger.With("catalog", Name),
	}
}

// Name implements songs.Source.
func (c *Client) Name() string {
	return Name
}

// CheckConfig implements songs.Source.
func (c *Client) CheckConfig() error {
	return songs.RequireSecrets(Name, "YOUTUBE_API_KEY", c.apiKey())
}

// FetchSongs implements songs.Source. An empty query reads the most popular
// music chart; otherwise it searches and then loads the matching videos.
func (c *Client) FetchSongs(ctx context.Context, q songs.Query) ([]songs.Song, error) {
	key := c.apiKey()
	if err := songs.RequireSecrets(Name, "YOUTUBE_API_KEY", key); err != nil {
		return nil, err
	}

	limit := q.PageSize(c.defaultLimit)

	var (
		videos []rawVideo
		err    error
	)
	if q.IsEmpty() {
		videos, err = c.chart(ctx, key, limit)
	} else {
		videos, err = c.search(ctx, key, q.Terms()+" music", limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]songs.Song, 0, len(videos))
	for _, v := range videos {
		if !c.keep(v) {
			continue
		}
		song, ok := convertVideo(v, c.placeholder)
		if !ok {
			c.logger.Debug("skipping malformed video", "id", v.ID)
			continue
		}
		out = append(out, song)
	}

	return songs.Dedupe(out), nil
}

// keep applies the duration filter. Videos without a duration are rejected.
func (c *Client) keep(v rawVideo) bool {
	if v.ContentDetails.Duration == "" {
		return false
	}
	if c.filter.Classify(v.ContentDetails.Duration, v.Snippet.Title) == mediafilter.Reject {
		c.logger.Debug("filtered video", "id", v.ID, "duration", v.ContentDetails.Duration)
		return false
	}
	return true
}

func (c *Client) chart(ctx context.Context, key string, limit int) ([]rawVideo, error) {
	var resp videoListResponse
	err := c.http.GetJSON(ctx, upstream.Request{
		Path: "/videos",
		Query: map[string]string{
			"part":            "snippet,contentDetails",
			"chart":           "mostPopular",
			"videoCategoryId": c.categoryID,
			"regionCode":      c.regionCode,
			"maxResults":      strconv.Itoa(limit),
			"key":             key,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing items")
	}
	return resp.Items, nil
}

// search finds video IDs for terms, then loads their details so the duration
// filter can run. Both calls complete before anything is returned.
func (c *Client) search(ctx context.Context, key, terms string, limit int) ([]rawVideo, error) {
	var found searchListResponse
	err := c.http.GetJSON(ctx, upstream.Request{
		Path: "/search",
		Query: map[string]string{
			"part":            "snippet",
			"type":            "video",
			"q":               terms,
			"videoCategoryId": c.categoryID,
			"regionCode":      c.regionCode,
			"maxResults":      strconv.Itoa(limit),
			"key":             key,
		},
	}, &found)
	if err != nil {
		return nil, err
	}
	if found.Items == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing items")
	}

	ids := make([]string, 0, len(found.Items))
	for _, item := range found.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return []rawVideo{}, nil
	}

	var details videoListResponse
	err = c.http.GetJSON(ctx, upstream.Request{
		Path: "/videos",
		Query: map[string]string{
			"part": "snippet,contentDetails",
			"id":   strings.Join(ids, ","),
			"key":  key,
		},
	}, &details)
	if err != nil {
		return nil, err
	}
	if details.Items == nil {
		return nil, c.http.Malformed(http.StatusOK, "missing items")
	}
	return details.Items, nil
}

var _ songs.Source = (*Client)(nil)
