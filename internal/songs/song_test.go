package songs

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalize(t *testing.T) {
	preview := "https://p.scdn.co/mp3-preview/abc"
	empty := "  "

	tests := []struct {
		name        string
		in          Song
		wantOK      bool
		wantArt     string
		wantPreview *string
	}{
		{
			name:        "complete song",
			in:          Song{ID: "1", Title: "Song", Artist: "Artist", AlbumArtURL: "https://img/1.jpg", PreviewURL: &preview},
			wantOK:      true,
			wantArt:     "https://img/1.jpg",
			wantPreview: &preview,
		},
		{
			name:    "missing art uses placeholder",
			in:      Song{ID: "1", Title: "Song", Artist: "Artist"},
			wantOK:  true,
			wantArt: "https://placeholder/x.png",
		},
		{
			name:        "blank preview becomes nil",
			in:          Song{ID: "1", Title: "Song", Artist: "Artist", PreviewURL: &empty},
			wantOK:      true,
			wantArt:     "https://placeholder/x.png",
			wantPreview: nil,
		},
		{name: "missing id", in: Song{Title: "Song", Artist: "Artist"}},
		{name: "missing title", in: Song{ID: "1", Artist: "Artist"}},
		{name: "whitespace artist", in: Song{ID: "1", Title: "Song", Artist: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in, "https://placeholder/x.png")
			if ok != tt.wantOK {
				t.Fatalf("Normalize() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.AlbumArtURL != tt.wantArt {
				t.Errorf("AlbumArtURL = %q, want %q", got.AlbumArtURL, tt.wantArt)
			}
			if (got.PreviewURL == nil) != (tt.wantPreview == nil) {
				t.Fatalf("PreviewURL = %v, want %v", got.PreviewURL, tt.wantPreview)
			}
			if got.PreviewURL != nil && *got.PreviewURL != *tt.wantPreview {
				t.Errorf("PreviewURL = %q, want %q", *got.PreviewURL, *tt.wantPreview)
			}
		})
	}
}

func TestNormalize_DefaultPlaceholder(t *testing.T) {
	got, ok := Normalize(Song{ID: "1", Title: "a", Artist: "b"}, "")
	if !ok {
		t.Fatal("Normalize() rejected a valid song")
	}
	if got.AlbumArtURL != DefaultPlaceholderArt {
		t.Errorf("AlbumArtURL = %q, want %q", got.AlbumArtURL, DefaultPlaceholderArt)
	}
}

func TestDedupe(t *testing.T) {
	in := []Song{{ID: "a", Title: "1"}, {ID: "b"}, {ID: "a", Title: "2"}, {ID: "c"}, {ID: "b"}}
	got := Dedupe(in)

	if len(got) != 3 {
		t.Fatalf("Dedupe() returned %d songs, want 3", len(got))
	}
	if got[0].Title != "1" {
		t.Errorf("Dedupe() kept %q, want first occurrence", got[0].Title)
	}

	if empty := Dedupe(nil); empty == nil {
		t.Error("Dedupe(nil) returned nil, want empty slice")
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name      string
		q         Query
		wantTerms string
		wantSize  int
	}{
		{"empty", Query{}, "", 50},
		{"mood and genre", Query{Mood: " chill ", Genre: "pop"}, "chill pop", 50},
		{"keywords only", Query{Keywords: "Song Artist", Limit: 1}, "Song Artist", 1},
		{"limit too large", Query{Genre: "rock", Limit: 500}, "rock", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Terms(); got != tt.wantTerms {
				t.Errorf("Terms() = %q, want %q", got, tt.wantTerms)
			}
			if got := tt.q.IsEmpty(); got != (tt.wantTerms == "") {
				t.Errorf("IsEmpty() = %v", got)
			}
			if got := tt.q.PageSize(50); got != tt.wantSize {
				t.Errorf("PageSize() = %d, want %d", got, tt.wantSize)
			}
		})
	}
}

func TestJoinArtistsAndCompositeID(t *testing.T) {
	if got := JoinArtists([]string{"A", " ", "B", "C"}); got != "A, B, C" {
		t.Errorf("JoinArtists() = %q", got)
	}
	if got := CompositeID("Song", "Artist"); got != "Song-Artist" {
		t.Errorf("CompositeID() = %q", got)
	}
	if got := CompositeID("Song", ""); got != "" {
		t.Errorf("CompositeID() with empty artist = %q, want empty", got)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	upstream := fmt.Errorf("fetching: %w", &UpstreamError{Catalog: "youtube", Status: 503, Reason: "backend error"})
	if !errors.Is(upstream, ErrUpstreamUnavailable) {
		t.Error("UpstreamError should match ErrUpstreamUnavailable")
	}
	var ue *UpstreamError
	if !errors.As(upstream, &ue) || ue.Status != 503 {
		t.Errorf("errors.As() did not recover status 503: %v", upstream)
	}
	if want := "youtube upstream unavailable (status 503): backend error"; ue.Error() != want {
		t.Errorf("Error() = %q, want %q", ue.Error(), want)
	}

	auth := &AuthError{Catalog: "spotify", Status: 401}
	if !errors.Is(auth, ErrUpstreamAuth) {
		t.Error("AuthError should match ErrUpstreamAuth")
	}

	if err := RequireSecrets("spotify", "SPOTIFY_ID", "id", "SPOTIFY_SECRET", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("RequireSecrets() error = %v, want ErrMissingCredentials", err)
	}
	if err := RequireSecrets("spotify", "SPOTIFY_ID", "id"); err != nil {
		t.Errorf("RequireSecrets() error = %v, want nil", err)
	}
}

func TestExportLines(t *testing.T) {
	list := []Song{
		{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Artist: "Rick Astley"},
	}

	got := ExportLines("youtube", list)
	want := "Never Gonna Give You Up - Rick Astley (https://www.youtube.com/watch?v=dQw4w9WgXcQ)\n"
	if got != want {
		t.Errorf("ExportLines() = %q, want %q", got, want)
	}

	got = ExportLines("lastfm", []Song{{ID: "Song-Artist", Title: "Song", Artist: "Artist"}})
	if got != "Song - Artist\n" {
		t.Errorf("ExportLines() without link = %q", got)
	}
}
