package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/justestif/go-song-swiper/internal/auth"
	"github.com/justestif/go-song-swiper/internal/recommend"
	"github.com/justestif/go-song-swiper/internal/songcache"
	"github.com/justestif/go-song-swiper/internal/songs"
	"github.com/justestif/go-song-swiper/internal/spotify"
)

const (
	stateCookieName = "oauth_state"
	exportFilename  = "liked-songs.txt"
	maxBodyBytes    = 1 << 20
)

// SimilarFinder is implemented by catalogs that can suggest tracks like a seed track.
type SimilarFinder interface {
	SimilarTracks(ctx context.Context, artist, track string, limit int) ([]songs.Song, error)
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	source       songs.Source
	cache        *songcache.Cache
	recommender  *recommend.Recommender
	sessions     SessionManager
	credentials  auth.Credentials
	redirectURI  string
	spotifyAPI   string
	defaultLimit int
	logger       *log.Logger
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	a, err := h.authenticator()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, a.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	var stored string
	if c, err := r.Cookie(stateCookieName); err == nil {
		stored = c.Value
	}
	state := r.URL.Query().Get("state")
	if err := auth.CheckState(stored, state); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("spotify auth error: %s", errMsg))
		return
	}

	a, err := h.authenticator()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := a.Token(r.Context(), state, r)
	if err != nil {
		h.logger.Warn("token exchange failed", "err", err)
		writeJSONError(w, http.StatusBadGateway, "failed to get token")
		return
	}

	client := spotify.UserClientFor(a.Client(r.Context(), token), h.spotifyAPI)
	userID, userName, err := client.CurrentUser(r.Context())
	if err != nil {
		h.logger.Warn("user lookup failed", "err", err)
		writeJSONError(w, http.StatusBadGateway, "failed to get user info")
		return
	}

	session, err := h.sessions.Create(r.Context(), token, userID, userName)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessions.SetCookie(w, session)
	h.logger.Info("user signed in", "user", userID)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout clears the session and redirects to home (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type sessionUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *sessionUser `json:"user"`
}

// Session reports whether the caller is signed in (GET /auth/session).
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{}
	if session := h.sessions.GetFromRequest(r); session != nil {
		resp.Authenticated = true
		resp.User = &sessionUser{ID: session.UserID, Name: session.UserName}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports liveness and the active catalog (GET /health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"catalog": h.source.Name(),
	})
}

// Songs is the aggregation endpoint (GET /songs?mood=&genre=&q=&limit=).
func (h *Handlers) Songs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, err := parseLimit(params.Get("limit"), h.defaultLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := songs.Query{
		Mood:     params.Get("mood"),
		Genre:    params.Get("genre"),
		Keywords: params.Get("q"),
		Limit:    limit,
	}

	// Credentials are checked before the cache so a misconfigured
	// deployment never serves stale results.
	if err := h.source.CheckConfig(); err != nil {
		h.writeError(w, r, err)
		return
	}

	fetch := func(ctx context.Context) ([]songs.Song, error) {
		list, err := h.source.FetchSongs(ctx, q)
		if err != nil {
			return nil, err
		}
		return songs.Dedupe(list), nil
	}

	var list []songs.Song
	if h.cache != nil {
		var hit bool
		list, hit, err = h.cache.GetOrFetch(r.Context(), songcache.Key(h.source.Name(), q, limit), fetch)
		if hit {
			h.logger.Debug("cache hit", "mood", q.Mood, "genre", q.Genre)
		}
	} else {
		list, err = fetch(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSongs(w, list)
}

// Similar returns tracks similar to a seed (GET /songs/similar?artist=&track=).
func (h *Handlers) Similar(w http.ResponseWriter, r *http.Request) {
	finder, ok := h.source.(SimilarFinder)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("similar tracks are not supported by %s", h.source.Name()))
		return
	}

	params := r.URL.Query()
	artist := strings.TrimSpace(params.Get("artist"))
	track := strings.TrimSpace(params.Get("track"))
	if artist == "" || track == "" {
		writeJSONError(w, http.StatusBadRequest, "artist and track are required")
		return
	}
	limit, err := parseLimit(params.Get("limit"), h.defaultLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.source.CheckConfig(); err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := finder.SimilarTracks(r.Context(), artist, track, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSongs(w, songs.Dedupe(list))
}

type recommendRequest struct {
	Liked []songs.Song `json:"liked"`
	Limit int          `json:"limit"`
}

// Recommendations suggests new songs based on the liked list (POST /recommendations).
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.recommender.CheckConfig(); err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.recommender.Recommend(r.Context(), req.Liked, req.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSongs(w, list)
}

// ExportLiked renders the liked list as a text download (POST /liked/export).
func (h *Handlers) ExportLiked(w http.ResponseWriter, r *http.Request) {
	var liked []songs.Song
	if err := decodeBody(w, r, &liked); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, songs.ExportLines(h.source.Name(), liked))
}

type playlistRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Public      bool     `json:"public"`
	TrackIDs    []string `json:"trackIds"`
}

// CreatePlaylist saves liked tracks to a new Spotify playlist (POST /playlists).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSONError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	if h.source.Name() != spotify.Name {
		writeJSONError(w, http.StatusBadRequest, "playlists require the spotify catalog")
		return
	}

	var req playlistRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	a, err := h.authenticator()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	client := spotify.UserClientFor(a.Client(r.Context(), session.Token), h.spotifyAPI)
	id, err := client.CreatePlaylistWithTracks(r.Context(), req.Name, req.Description, req.Public, req.TrackIDs)
	h.saveRefreshedToken(r.Context(), session, client)
	if err != nil {
		h.logger.Warn("playlist creation failed", "user", session.UserID, "playlist", id, "err", err)
		body := map[string]string{"error": err.Error()}
		if id != "" {
			// The playlist exists but is missing some tracks.
			body["id"] = id
		}
		writeJSON(w, http.StatusBadGateway, body)
		return
	}

	h.logger.Info("playlist created", "user", session.UserID, "playlist", id, "tracks", len(req.TrackIDs))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// saveRefreshedToken writes back a token the oauth2 transport refreshed
// during the user's calls, whether or not those calls succeeded.
func (h *Handlers) saveRefreshedToken(ctx context.Context, session *Session, client *spotify.UserClient) {
	token, err := client.Token()
	if err != nil || token == nil {
		return
	}
	if session.Token == nil || token.AccessToken != session.Token.AccessToken {
		h.sessions.UpdateToken(ctx, session.ID, token)
	}
}

func (h *Handlers) authenticator() (*spotifyauth.Authenticator, error) {
	id, secret := h.credentials()
	return auth.NewSpotifyAuthenticator(id, secret, h.redirectURI)
}

// writeError maps a typed error to its status code and logs it.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, songs.ErrMissingCredentials):
		status = http.StatusInternalServerError
		h.logger.Error("configuration error", "path", r.URL.Path, "err", err)
	case errors.Is(err, context.Canceled):
		h.logger.Debug("request cancelled", "path", r.URL.Path)
	default:
		h.logger.Warn("upstream failure", "path", r.URL.Path, "err", err)
	}
	writeJSONError(w, status, err.Error())
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > songs.MaxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", songs.MaxLimit)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeSongs(w http.ResponseWriter, list []songs.Song) {
	if list == nil {
		list = []songs.Song{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
