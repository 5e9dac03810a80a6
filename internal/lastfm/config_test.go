package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/justestif/go-song-swiper/internal/logging"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/upstream"
)

func TestCheckConfig(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{
			name:    "valid API key",
			key:     "abc123def456abc123def456abc12345",
			wantErr: nil,
		},
		{
			name:    "missing API key",
			key:     "",
			wantErr: songs.ErrMissingCredentials,
		},
		{
			name:    "whitespace API key",
			key:     "   ",
			wantErr: songs.ErrMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestCount.Add(1)
				w.Write([]byte(`{"tracks":{"track":[]}}`))
			}))
			defer server.Close()

			client := NewClient(Config{
				BaseURL: server.URL,
				APIKey:  func() string { return tt.key },
				HTTP:    upstream.Options{Logger: logging.Discard()},
			})

			if err := client.CheckConfig(); !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckConfig() error = %v, wantErr %v", err, tt.wantErr)
			}

			_, err := client.FetchSongs(context.Background(), songs.Query{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchSongs() error = %v, wantErr %v", err, tt.wantErr)
			}

			wantRequests := int32(1)
			if tt.wantErr != nil {
				wantRequests = 0
			}
			if got := requestCount.Load(); got != wantRequests {
				t.Errorf("requests = %d, want %d", got, wantRequests)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.DefaultLimit != 50 {
		t.Errorf("DefaultLimit = %d, want 50", cfg.DefaultLimit)
	}
	if cfg.APIKey() != "" {
		t.Errorf("APIKey() = %q, want empty", cfg.APIKey())
	}
}
