package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/songs"
)

// Default concurrency for resolving picks against the catalog.
const DefaultConcurrency = 5

// DefaultLimit is the number of recommendations requested when none is given.
const DefaultLimit = 5

// Resolution holds the outcome of looking one pick up in the catalog.
type Resolution struct {
	Pick     Pick
	Song     songs.Song
	Resolved bool  // false when the composite fallback was used
	Error    error // Non-nil if the catalog lookup failed
}

// Recommender extends a liked-songs list with model picks resolved against
// the active catalog.
type Recommender struct {
	gen         Generator
	resolver    songs.Source
	placeholder string
	concurrency int
	logger      *log.Logger
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithConcurrency sets the number of concurrent catalog lookups.
func WithConcurrency(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Recommender) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPlaceholderArt sets the art used for unresolved picks.
func WithPlaceholderArt(url string) Option {
	return func(r *Recommender) {
		r.placeholder = url
	}
}

// NewRecommender creates a Recommender. resolver may be nil, in which case
// every pick becomes a composite-ID song.
func NewRecommender(gen Generator, resolver songs.Source, opts ...Option) *Recommender {
	r := &Recommender{
		gen:         gen,
		resolver:    resolver,
		concurrency: DefaultConcurrency,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "recommend")
	return r
}

// CheckConfig reports a *songs.ConfigError if the generator is not configured.
func (r *Recommender) CheckConfig() error {
	return r.gen.CheckConfig()
}

// Recommend asks the model for up to limit new songs in the spirit of liked.
// Songs already in liked are never returned.
func (r *Recommender) Recommend(ctx context.Context, liked []songs.Song, limit int) ([]songs.Song, error) {
	if err := r.gen.CheckConfig(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, songs.MaxLimit)

	text, err := r.gen.Generate(ctx, likedPrompt(liked, limit))
	if err != nil {
		return nil, err
	}

	picks, err := ParsePicks(text, 0)
	if err != nil {
		r.logger.Warn("unusable model output", "err", err)
		return nil, &songs.UpstreamError{Catalog: Name, Reason: "malformed response: " + err.Error(), Err: err}
	}

	resolutions, err := r.Resolve(ctx, picks)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]struct{}, len(liked)*2)
	for _, s := range liked {
		exclude[s.ID] = struct{}{}
		exclude[songKey(s.Title, s.Artist)] = struct{}{}
	}

	out := make([]songs.Song, 0, limit)
	for _, res := range resolutions {
		if _, skip := exclude[res.Song.ID]; skip {
			continue
		}
		if _, skip := exclude[songKey(res.Song.Title, res.Song.Artist)]; skip {
			continue
		}
		out = append(out, res.Song)
	}

	out = songs.Dedupe(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Resolve looks picks up in the catalog concurrently.
// Results are returned in the same order as picks; picks that cannot be
// parsed into a song are left out. Individual lookup errors are captured in
// Resolution.Error rather than failing the batch.
func (r *Recommender) Resolve(ctx context.Context, picks []Pick) ([]Resolution, error) {
	if len(picks) == 0 {
		return []Resolution{}, nil
	}

	results := make([]Resolution, len(picks))

	type workItem struct {
		index int
		pick  Pick
	}
	workCh := make(chan workItem, len(picks))

	// Feed work items
	for i, p := range picks {
		workCh <- workItem{index: i, pick: p}
	}
	close(workCh)

	// Process with worker pool
	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				select {
				case <-ctx.Done():
					results[work.index] = r.fallback(work.pick, ctx.Err())
					continue
				default:
				}

				results[work.index] = r.resolveOne(ctx, work.pick)
			}
		}()
	}

	wg.Wait()

	// Check if context was cancelled
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make([]Resolution, 0, len(results))
	for _, res := range results {
		if res.Song.ID != "" {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *Recommender) resolveOne(ctx context.Context, p Pick) Resolution {
	if r.resolver == nil || r.resolver.Name() == Name {
		return r.fallback(p, nil)
	}

	found, err := r.resolver.FetchSongs(ctx, songs.Query{
		Keywords: p.Title + " " + p.Artist,
		Limit:    5,
	})
	if err != nil {
		r.logger.Debug("pick lookup failed", "title", p.Title, "artist", p.Artist, "err", err)
		return r.fallback(p, err)
	}
	if len(found) == 0 {
		return r.fallback(p, nil)
	}

	best := found[0]
	for _, s := range found {
		if strings.EqualFold(s.Title, p.Title) {
			best = s
			break
		}
	}
	return Resolution{Pick: p, Song: best, Resolved: true}
}

func (r *Recommender) fallback(p Pick, err error) Resolution {
	song, _ := pickSong(p, r.placeholder)
	return Resolution{Pick: p, Song: song, Error: err}
}

func songKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(artist))
}

func likedPrompt(liked []songs.Song, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a music discovery expert. Recommend %d new songs to a user based on the tracks they have liked.

Provide a diverse set of recommendations that match the vibe of the liked songs, but introduce them to tracks they might not have heard before. Do not recommend songs that are already in the liked list.

Return ONLY a valid JSON array like:
[{"title":"Song Title","artist":"Artist Name"}]

Liked Songs:
`, limit)
	for _, s := range liked {
		fmt.Fprintf(&b, "- %s - %s\n", s.Title, s.Artist)
	}
	return b.String()
}
