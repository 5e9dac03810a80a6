package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-song-swiper/internal/songs"
)

const defaultSourceLimit = 15

// Source serves model picks as a catalog. Songs carry composite IDs,
// placeholder art and no preview.
type Source struct {
	gen          Generator
	placeholder  string
	defaultLimit int
	logger       *log.Logger
}

// NewSource creates a Source over gen.
func NewSource(gen Generator, placeholder string, defaultLimit int, logger *log.Logger) *Source {
	if defaultLimit <= 0 {
		defaultLimit = defaultSourceLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		gen:          gen,
		placeholder:  placeholder,
		defaultLimit: defaultLimit,
		logger:       logger.With("catalog", Name),
	}
}

// Name implements songs.Source.
func (s *Source) Name() string {
	return Name
}

// CheckConfig implements songs.Source.
func (s *Source) CheckConfig() error {
	return s.gen.CheckConfig()
}

// FetchSongs implements songs.Source.
func (s *Source) FetchSongs(ctx context.Context, q songs.Query) ([]songs.Song, error) {
	if err := s.gen.CheckConfig(); err != nil {
		return nil, err
	}

	limit := q.PageSize(s.defaultLimit)
	text, err := s.gen.Generate(ctx, discoveryPrompt(q, limit))
	if err != nil {
		return nil, err
	}

	picks, err := ParsePicks(text, limit)
	if err != nil {
		s.logger.Warn("unusable model output", "err", err)
		return nil, &songs.UpstreamError{Catalog: Name, Reason: "malformed response: " + err.Error(), Err: err}
	}

	out := make([]songs.Song, 0, len(picks))
	for _, p := range picks {
		if song, ok := pickSong(p, s.placeholder); ok {
			out = append(out, song)
		}
	}
	return songs.Dedupe(out), nil
}

func discoveryPrompt(q songs.Query, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provide a JSON array of %d popular songs", limit)
	if mood := strings.TrimSpace(q.Mood); mood != "" {
		fmt.Fprintf(&b, " with a %s mood", mood)
	}
	if genre := strings.TrimSpace(q.Genre); genre != "" {
		fmt.Fprintf(&b, " in the %s genre", genre)
	}
	if kw := strings.TrimSpace(q.Keywords); kw != "" {
		fmt.Fprintf(&b, " related to %q", kw)
	}
	b.WriteString(`.
For each song, include the title and artist name.
Return ONLY a valid JSON array like:
[{"title":"Song Title","artist":"Artist Name"}]

Requirements:
- Include only well-known official songs
- Avoid compilations, covers, remixes, live versions and album uploads
- One song per entry`)
	return b.String()
}

var _ songs.Source = (*Source)(nil)
