// Package recommend asks a hosted LLM for song picks, either as a catalog of its
// own or to extend a user's liked list.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/justestif/go-song-swiper/internal/songs"
)

const (
	// Name is the catalog identifier used for errors and the gemini source.
	Name = "gemini"

	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash"
)

// ErrNoPicks is returned when the model output holds no usable picks.
var ErrNoPicks = errors.New("no song picks in model output")

// Pick is one model-suggested song.
type Pick struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Generator produces text for a prompt.
type Generator interface {
	// CheckConfig reports a *songs.ConfigError without network I/O.
	CheckConfig() error
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini is a Generator backed by the Google GenAI SDK.
type Gemini struct {
	apiKey func() string
	model  string

	mu        sync.Mutex
	client    *genai.Client
	clientKey string
}

// NewGemini creates a Gemini generator. The API key is read on every call.
func NewGemini(apiKey func() string, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if apiKey == nil {
		apiKey = func() string { return "" }
	}
	return &Gemini{apiKey: apiKey, model: model}
}

// CheckConfig implements Generator.
func (g *Gemini) CheckConfig() error {
	return songs.RequireSecrets(Name, "GEMINI_API_KEY", g.apiKey())
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	key := g.apiKey()
	if err := songs.RequireSecrets(Name, "GEMINI_API_KEY", key); err != nil {
		return "", err
	}

	client, err := g.clientFor(ctx, key)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", &songs.UpstreamError{Catalog: Name, Reason: err.Error(), Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &songs.UpstreamError{Catalog: Name, Reason: "no content from gemini"}
	}
	return text, nil
}

// clientFor returns the SDK client for key, creating it on first use and
// again whenever the key changes.
func (g *Gemini) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.clientKey == key {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.client, g.clientKey = client, key
	return client, nil
}

// ParsePicks extracts a JSON array of {title, artist} objects from model
// output, tolerating markdown code fences and surrounding prose. Entries
// missing a title or artist are skipped. At most limit picks are returned
// when limit is positive.
func ParsePicks(text string, limit int) ([]Pick, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, ErrNoPicks
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPicks, err)
	}

	picks := make([]Pick, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		var p Pick
		if json.Unmarshal(item, &p) != nil {
			continue
		}
		p.Title = strings.TrimSpace(p.Title)
		p.Artist = strings.TrimSpace(p.Artist)
		if p.Title == "" || p.Artist == "" {
			continue
		}
		key := strings.ToLower(p.Title + "\x00" + p.Artist)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		picks = append(picks, p)
		if limit > 0 && len(picks) == limit {
			break
		}
	}

	if len(picks) == 0 {
		return nil, ErrNoPicks
	}
	return picks, nil
}

// pickSong turns a pick into a Song with a composite ID and no preview.
func pickSong(p Pick, placeholder string) (songs.Song, bool) {
	return songs.Normalize(songs.Song{
		ID:     songs.CompositeID(p.Title, p.Artist),
		Title:  p.Title,
		Artist: p.Artist,
	}, placeholder)
}

var _ Generator = (*Gemini)(nil)
