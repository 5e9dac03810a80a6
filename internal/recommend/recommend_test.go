package recommend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justestif/go-song-swiper/internal/logging"
	"github.com/justestif/go-song-swiper/internal/songs"
)

type fakeGenerator struct {
	text       string
	err        error
	configErr  error
	lastPrompt string
}

func (f *fakeGenerator) CheckConfig() error { return f.configErr }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.text, f.err
}

// fakeCatalog answers keyword queries from a title->song map.
type fakeCatalog struct {
	byTitle  map[string]songs.Song
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	mu       sync.Mutex
	queries  []string
}

func (f *fakeCatalog) Name() string       { return "youtube" }
func (f *fakeCatalog) CheckConfig() error { return nil }

func (f *fakeCatalog) FetchSongs(_ context.Context, q songs.Query) ([]songs.Song, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.queries = append(f.queries, q.Keywords)
	f.mu.Unlock()

	for title, s := range f.byTitle {
		if strings.HasPrefix(q.Keywords, title+" ") {
			if f.fail[title] {
				return nil, &songs.UpstreamError{Catalog: "youtube", Status: 503}
			}
			return []songs.Song{s}, nil
		}
	}
	return []songs.Song{}, nil
}

func TestParsePicks(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		limit   int
		want    []Pick
		wantErr bool
	}{
		{
			name: "plain array",
			text: `[{"title":"Holocene","artist":"Bon Iver"},{"title":"Motion Sickness","artist":"Phoebe Bridgers"}]`,
			want: []Pick{{"Holocene", "Bon Iver"}, {"Motion Sickness", "Phoebe Bridgers"}},
		},
		{
			name: "fenced with prose and capitalized keys",
			text: "Here you go:\n```json\n[{\"Title\":\"Holocene\",\"Artist\":\"Bon Iver\"}]\n```",
			want: []Pick{{"Holocene", "Bon Iver"}},
		},
		{
			name: "object wrapper",
			text: `{"recommendations":[{"title":"A","artist":"B"}]}`,
			want: []Pick{{"A", "B"}},
		},
		{
			name: "malformed and duplicate entries skipped",
			text: `[{"title":"A","artist":"B"},{"title":"","artist":"X"},"nonsense",{"title":"a","artist":"b"},{"title":"C","artist":"D"}]`,
			want: []Pick{{"A", "B"}, {"C", "D"}},
		},
		{
			name:  "limit",
			text:  `[{"title":"A","artist":"B"},{"title":"C","artist":"D"}]`,
			limit: 1,
			want:  []Pick{{"A", "B"}},
		},
		{
			name:    "no array",
			text:    "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "only invalid entries",
			text:    `[{"title":"","artist":""}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePicks(tt.text, tt.limit)
			if tt.wantErr {
				if !errors.Is(err, ErrNoPicks) {
					t.Errorf("ParsePicks() error = %v, want ErrNoPicks", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePicks() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParsePicks() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("pick %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSource_FetchSongs(t *testing.T) {
	gen := &fakeGenerator{text: `[{"title":"Holocene","artist":"Bon Iver"},{"title":"Re: Stacks","artist":"Bon Iver"}]`}
	src := NewSource(gen, "https://placeholder.test/a.png", 0, logging.Discard())

	got, err := src.FetchSongs(context.Background(), songs.Query{Mood: "melancholy", Genre: "indie folk", Limit: 2})
	if err != nil {
		t.Fatalf("FetchSongs() error = %v", err)
	}

	if !strings.Contains(gen.lastPrompt, "melancholy mood") || !strings.Contains(gen.lastPrompt, "indie folk genre") {
		t.Errorf("prompt does not carry the query: %q", gen.lastPrompt)
	}
	if len(got) != 2 {
		t.Fatalf("FetchSongs() returned %d songs, want 2", len(got))
	}
	if got[0].ID != "Holocene-Bon Iver" || got[0].AlbumArtURL != "https://placeholder.test/a.png" || got[0].PreviewURL != nil {
		t.Errorf("song = %+v", got[0])
	}
}

func TestSource_Errors(t *testing.T) {
	missing := &songs.ConfigError{Catalog: Name, Missing: []string{"GEMINI_API_KEY"}}

	tests := []struct {
		name    string
		gen     *fakeGenerator
		wantErr error
	}{
		{"missing key", &fakeGenerator{configErr: missing}, songs.ErrMissingCredentials},
		{"generation failure", &fakeGenerator{err: &songs.UpstreamError{Catalog: Name, Reason: "quota"}}, songs.ErrUpstreamUnavailable},
		{"unparseable output", &fakeGenerator{text: "no songs today"}, songs.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource(tt.gen, "", 0, logging.Discard()).FetchSongs(context.Background(), songs.Query{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchSongs() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == songs.ErrMissingCredentials && tt.gen.lastPrompt != "" {
				t.Error("generator called despite missing credentials")
			}
		})
	}
}

func TestRecommender_ResolvesAndExcludesLiked(t *testing.T) {
	preview := "https://www.youtube.com/embed/v1"
	catalog := &fakeCatalog{
		byTitle: map[string]songs.Song{
			"Holocene":        {ID: "v1", Title: "Holocene", Artist: "Bon Iver", AlbumArtURL: "https://i/1.jpg", PreviewURL: &preview},
			"Skinny Love":     {ID: "liked1", Title: "Skinny Love", Artist: "Bon Iver", AlbumArtURL: "https://i/2.jpg"},
			"Motion Sickness": {ID: "v3", Title: "Motion Sickness", Artist: "Phoebe Bridgers", AlbumArtURL: "https://i/3.jpg"},
		},
		fail: map[string]bool{"Motion Sickness": true},
	}
	gen := &fakeGenerator{text: `[
		{"title":"Holocene","artist":"Bon Iver"},
		{"title":"Skinny Love","artist":"Bon Iver"},
		{"title":"Motion Sickness","artist":"Phoebe Bridgers"},
		{"title":"Unknown Gem","artist":"Nobody"},
		{"title":"Flume","artist":"Bon Iver"}
	]`}

	liked := []songs.Song{
		{ID: "liked1", Title: "Skinny Love", Artist: "Bon Iver"},
		{ID: "other-catalog-id", Title: "Flume", Artist: "Bon Iver"},
	}

	r := NewRecommender(gen, catalog, WithLogger(logging.Discard()), WithPlaceholderArt("https://placeholder.test/a.png"))
	got, err := r.Recommend(context.Background(), liked, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if !strings.Contains(gen.lastPrompt, "- Skinny Love - Bon Iver") {
		t.Errorf("prompt does not list liked songs: %q", gen.lastPrompt)
	}

	wantIDs := []string{"v1", "Motion Sickness-Phoebe Bridgers", "Unknown Gem-Nobody"}
	if len(got) != len(wantIDs) {
		t.Fatalf("Recommend() = %+v, want ids %v", got, wantIDs)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("song %d ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].PreviewURL == nil {
		t.Error("resolved song lost its preview")
	}
	if got[2].AlbumArtURL != "https://placeholder.test/a.png" || got[2].PreviewURL != nil {
		t.Errorf("fallback song = %+v", got[2])
	}
}

func TestRecommender_Limit(t *testing.T) {
	gen := &fakeGenerator{text: `[{"title":"A","artist":"1"},{"title":"B","artist":"2"},{"title":"C","artist":"3"}]`}
	r := NewRecommender(gen, nil, WithLogger(logging.Discard()))

	got, err := r.Recommend(context.Background(), nil, 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recommend() returned %d songs, want 2", len(got))
	}
}

func TestRecommender_Concurrency(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		picks       int
	}{
		{"default concurrency", 0, 12},
		{"concurrency of 1", 1, 6},
		{"concurrency of 3", 3, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			b.WriteString("[")
			for i := 0; i < tt.picks; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				b.WriteString(`{"title":"T` + string(rune('a'+i)) + `","artist":"X"}`)
			}
			b.WriteString("]")

			catalog := &fakeCatalog{byTitle: map[string]songs.Song{}}
			r := NewRecommender(&fakeGenerator{text: b.String()}, catalog, WithConcurrency(tt.concurrency), WithLogger(logging.Discard()))

			got, err := r.Recommend(context.Background(), nil, songs.MaxLimit)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if len(got) != tt.picks {
				t.Errorf("Recommend() returned %d songs, want %d", len(got), tt.picks)
			}
			if int(catalog.calls.Load()) != tt.picks {
				t.Errorf("catalog calls = %d, want %d", catalog.calls.Load(), tt.picks)
			}

			want := tt.concurrency
			if want == 0 {
				want = DefaultConcurrency
			}
			if peak := int(catalog.peak.Load()); peak > want {
				t.Errorf("peak concurrent lookups = %d, want <= %d", peak, want)
			}
		})
	}
}

func TestRecommender_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := &fakeCatalog{byTitle: map[string]songs.Song{}}
	r := NewRecommender(&fakeGenerator{text: `[{"title":"A","artist":"B"}]`}, catalog, WithLogger(logging.Discard()))

	if _, err := r.Recommend(ctx, nil, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("Recommend() error = %v, want context.Canceled", err)
	}
	if catalog.calls.Load() != 0 {
		t.Errorf("catalog calls = %d, want 0", catalog.calls.Load())
	}
}

func TestRecommender_MissingKey(t *testing.T) {
	gen := &fakeGenerator{configErr: &songs.ConfigError{Catalog: Name, Missing: []string{"GEMINI_API_KEY"}}}
	r := NewRecommender(gen, nil, WithLogger(logging.Discard()))

	if _, err := r.Recommend(context.Background(), nil, 5); !errors.Is(err, songs.ErrMissingCredentials) {
		t.Errorf("Recommend() error = %v, want ErrMissingCredentials", err)
	}
}

func TestGemini_CheckConfig(t *testing.T) {
	if err := NewGemini(func() string { return "" }, "").CheckConfig(); !errors.Is(err, songs.ErrMissingCredentials) {
		t.Errorf("CheckConfig() = %v, want ErrMissingCredentials", err)
	}
	g := NewGemini(func() string { return "key" }, "")
	if err := g.CheckConfig(); err != nil {
		t.Errorf("CheckConfig() = %v, want nil", err)
	}
	if g.model != DefaultModel {
		t.Errorf("model = %q, want %q", g.model, DefaultModel)
	}
	if _, err := NewGemini(nil, "").Generate(context.Background(), "hi"); !errors.Is(err, songs.ErrMissingCredentials) {
		t.Errorf("Generate() without key error = %v, want ErrMissingCredentials", err)
	}
}

func TestGemini_ClientReusedPerKey(t *testing.T) {
	g := NewGemini(func() string { return "key-1" }, "")
	ctx := context.Background()

	first, err := g.clientFor(ctx, "key-1")
	if err != nil {
		t.Fatalf("clientFor() error = %v", err)
	}

	tests := []struct {
		name     string
		key      string
		wantSame bool
	}{
		{"same key", "key-1", true},
		{"rotated key", "key-2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.clientFor(ctx, tt.key)
			if err != nil {
				t.Fatalf("clientFor() error = %v", err)
			}
			if (got == first) != tt.wantSame {
				t.Errorf("client reused = %v, want %v", got == first, tt.wantSame)
			}
		})
	}
}
