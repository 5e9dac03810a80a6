package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/justestif/go-song-swiper/internal/logging"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL: serverURL + "/",
		APIKey:  func() string { return "test-api-key" },
		HTTP:    upstream.Options{Logger: logging.Discard()},
	})
}

const chartBody = `{"tracks":{"track":[
	{"name":"Espresso","mbid":"","artist":{"name":"Sabrina Carpenter"},"image":[
		{"#text":"https://lastfm.freetls.fastly.net/i/u/34s/2a96cbd8b46e442fc41c2b86b821562f.png","size":"small"},
		{"#text":"https://lastfm.freetls.fastly.net/i/u/300x300/2a96cbd8b46e442fc41c2b86b821562f.png","size":"extralarge"}]},
	{"name":"Creep","mbid":"d11fcceb-dfc5-4d19-b45d-f4e8f6d3eaa6","artist":{"name":"Radiohead"},"image":[
		{"#text":"https://img/small.png","size":"small"},
		{"#text":"https://img/large.png","size":"large"},
		{"#text":"https://img/medium.png","size":"medium"}]},
	{"name":"","artist":{"name":"Nobody"}}
]}}`

func TestFetchSongs_Methods(t *testing.T) {
	tests := []struct {
		name       string
		query      songs.Query
		body       string
		wantMethod string
		wantParam  string // param name checked for the query value
		wantValue  string
		wantCount  int
	}{
		{
			name:       "empty query reads chart",
			query:      songs.Query{},
			body:       chartBody,
			wantMethod: "chart.getTopTracks",
			wantCount:  2,
		},
		{
			name:       "genre preferred over mood as tag",
			query:      songs.Query{Mood: "chill", Genre: "pop"},
			body:       chartBody,
			wantMethod: "tag.getTopTracks",
			wantParam:  "tag",
			wantValue:  "pop",
			wantCount:  2,
		},
		{
			name:       "mood alone is the tag",
			query:      songs.Query{Mood: "sad"},
			body:       chartBody,
			wantMethod: "tag.getTopTracks",
			wantParam:  "tag",
			wantValue:  "sad",
			wantCount:  2,
		},
		{
			name:       "keywords search tracks",
			query:      songs.Query{Keywords: "Creep Radiohead"},
			body:       `{"results":{"trackmatches":{"track":{"name":"Creep","artist":"Radiohead","mbid":""}}}}`,
			wantMethod: "track.search",
			wantParam:  "track",
			wantValue:  "Creep Radiohead",
			wantCount:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotValue, gotKey, gotFormat string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				gotMethod = q.Get("method")
				gotKey = q.Get("api_key")
				gotFormat = q.Get("format")
				if tt.wantParam != "" {
					gotValue = q.Get(tt.wantParam)
				}
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			got, err := newTestClient(server.URL).FetchSongs(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("FetchSongs() error = %v", err)
			}

			if gotMethod != tt.wantMethod {
				t.Errorf("method = %q, want %q", gotMethod, tt.wantMethod)
			}
			if gotKey != "test-api-key" || gotFormat != "json" {
				t.Errorf("api_key = %q, format = %q", gotKey, gotFormat)
			}
			if gotValue != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantParam, gotValue, tt.wantValue)
			}
			if len(got) != tt.wantCount {
				t.Errorf("FetchSongs() returned %d songs, want %d", len(got), tt.wantCount)
			}
			for _, s := range got {
				if s.PreviewURL != nil {
					t.Errorf("song %q has preview %q, want nil", s.ID, *s.PreviewURL)
				}
			}
		})
	}
}

func TestConvertTrack(t *testing.T) {
	var resp tracksResponse
	if err := json.Unmarshal([]byte(chartBody), &resp); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		track   rawTrack
		wantOK  bool
		wantID  string
		wantArt string
	}{
		{
			name:    "no mbid uses composite id and placeholder for blank star",
			track:   resp.Tracks.Track[0],
			wantOK:  true,
			wantID:  "Espresso-Sabrina Carpenter",
			wantArt: "https://placeholder.test/a.png",
		},
		{
			name:    "mbid and largest image",
			track:   resp.Tracks.Track[1],
			wantOK:  true,
			wantID:  "d11fcceb-dfc5-4d19-b45d-f4e8f6d3eaa6",
			wantArt: "https://img/large.png",
		},
		{
			name:   "missing name dropped",
			track:  resp.Tracks.Track[2],
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertTrack(tt.track, "https://placeholder.test/a.png")
			if ok != tt.wantOK {
				t.Fatalf("convertTrack() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if got.AlbumArtURL != tt.wantArt {
				t.Errorf("AlbumArtURL = %q, want %q", got.AlbumArtURL, tt.wantArt)
			}
		})
	}
}

func TestFetchSongs_APIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantCode int
	}{
		{"rate limited in body", http.StatusOK, `{"error":29,"message":"Rate limit exceeded"}`, ErrRateLimited, http.StatusOK},
		{"invalid key with 403", http.StatusForbidden, `{"error":10,"message":"Invalid API key"}`, nil, http.StatusForbidden},
		{"missing tracks", http.StatusOK, `{"toptracks":{}}`, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestCount.Add(1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchSongs(context.Background(), songs.Query{})

			var ue *songs.UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("FetchSongs() error = %v, want *UpstreamError", err)
			}
			if ue.Status != tt.wantCode {
				t.Errorf("Status = %d, want %d", ue.Status, tt.wantCode)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchSongs() error = %v, want %v", err, tt.wantErr)
			}
			// No internal retries.
			if count := requestCount.Load(); count != 1 {
				t.Errorf("Expected 1 request, got %d", count)
			}
		})
	}
}

func TestSimilarTracks_Caching(t *testing.T) {
	var requestCount atomic.Int32
	var gotArtist, gotTrack, gotLimit string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		q := r.URL.Query()
		gotArtist, gotTrack, gotLimit = q.Get("artist"), q.Get("track"), q.Get("limit")
		if q.Get("method") != "track.getSimilar" {
			t.Errorf("method = %q", q.Get("method"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"similartracks":{"track":[
			{"name":"Karma Police","mbid":"","artist":{"name":"Radiohead"}},
			{"name":"Black","mbid":"","artist":{"name":"Pearl Jam"}}
		]}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// First call - should hit server
	first, err := client.SimilarTracks(context.Background(), "Radiohead", "Creep", 0)
	if err != nil {
		t.Fatalf("First SimilarTracks() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("First SimilarTracks() got %d tracks, want 2", len(first))
	}
	if gotArtist != "Radiohead" || gotTrack != "Creep" || gotLimit != "10" {
		t.Errorf("params = %q/%q/%q", gotArtist, gotTrack, gotLimit)
	}

	// Second call - should hit cache
	second, err := client.SimilarTracks(context.Background(), "radiohead", "creep", DefaultSimilarLimit)
	if err != nil {
		t.Fatalf("Second SimilarTracks() error = %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("Second SimilarTracks() got %d tracks, want 2", len(second))
	}

	// Should only have made one request
	if count := requestCount.Load(); count != 1 {
		t.Errorf("Expected 1 request, got %d", count)
	}
}

func TestSimilarTracks_MissingSeed(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	if _, err := client.SimilarTracks(context.Background(), "Radiohead", " ", 5); !errors.Is(err, ErrMissingSeed) {
		t.Errorf("SimilarTracks() error = %v, want ErrMissingSeed", err)
	}
}

func TestTrackList_SingleObject(t *testing.T) {
	var resp searchResponse
	body := `{"results":{"trackmatches":{"track":{"name":"Only","artist":"One","mbid":"m1"}}}}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	tracks := resp.Results.TrackMatches.Track
	if len(tracks) != 1 || tracks[0].Artist.Name != "One" {
		t.Errorf("tracks = %+v", tracks)
	}
}
