// Package auth supplies bearer tokens to catalog adapters: a client-credentials
// token cache, a static token supplier, and the Spotify authorization-code setup.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/go-song-swiper/internal/songs"
)

const (
	// DefaultSafetyMargin is subtracted from the token lifetime.
	DefaultSafetyMargin = 300 * time.Second

	defaultTokenTimeout = 10 * time.Second
)

// TokenSource supplies a currently valid bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Invalidator is implemented by token sources that can drop a token the
// upstream rejected.
type Invalidator interface {
	Invalidate()
}

// Credentials returns the client id/secret pair at the moment a token is needed.
type Credentials func() (clientID, clientSecret string)

// TokenCacheConfig configures a TokenCache.
type TokenCacheConfig struct {
	Catalog      string
	TokenURL     string
	Credentials  Credentials
	SafetyMargin time.Duration
	// FixedTTL, when non-zero, replaces the expires_in reported by the endpoint.
	FixedTTL time.Duration
	Timeout  time.Duration
	Now      func() time.Time
	Logger   *log.Logger
}

// TokenCache holds one client-credentials access token and refreshes it when
// it expires. Concurrent refreshes are coalesced into one request.
type TokenCache struct {
	catalog      string
	tokenURL     string
	credentials  Credentials
	safetyMargin time.Duration
	fixedTTL     time.Duration
	now          func() time.Time
	rc           *resty.Client
	logger       *log.Logger

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// tokenResponse is the JSON body of a successful client-credentials grant.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewTokenCache creates an empty TokenCache.
func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTokenTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetDisableWarn(true)

	return &TokenCache{
		catalog:      cfg.Catalog,
		tokenURL:     cfg.TokenURL,
		credentials:  cfg.Credentials,
		safetyMargin: cfg.SafetyMargin,
		fixedTTL:     cfg.FixedTTL,
		now:          cfg.Now,
		rc:           rc,
		logger:       cfg.Logger.With("catalog", cfg.Catalog),
	}
}

// Token returns the cached token if it has not expired, otherwise it requests a new one.
// On failure the cache is left empty and a *songs.AuthError is returned.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		// A caller that queued behind a finished refresh sees the new token here.
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next Token call re-authenticates.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// ExpiresAt returns the expiry of the cached token, or the zero time if none is cached.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	clientID, clientSecret := c.credentials()
	if err := songs.RequireSecrets(c.catalog, "client id", clientID, "client secret", clientSecret); err != nil {
		c.Invalidate()
		return "", err
	}

	issuedAt := c.now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBasicAuth(clientID, clientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(c.tokenURL)
	if err != nil {
		c.Invalidate()
		c.logger.Warn("token request failed", "err", err)
		return "", &songs.AuthError{Catalog: c.catalog, Err: err}
	}

	if !resp.IsSuccess() {
		c.Invalidate()
		c.logger.Warn("token request rejected", "status", resp.StatusCode())
		return "", &songs.AuthError{Catalog: c.catalog, Status: resp.StatusCode()}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		c.Invalidate()
		return "", &songs.AuthError{Catalog: c.catalog, Status: resp.StatusCode(), Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if tr.AccessToken == "" {
		c.Invalidate()
		return "", &songs.AuthError{Catalog: c.catalog, Status: resp.StatusCode(), Err: errors.New("token response has no access_token")}
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if c.fixedTTL > 0 {
		ttl = c.fixedTTL
	}
	expiresAt := issuedAt.Add(ttl - c.safetyMargin)

	c.mu.Lock()
	c.token = tr.AccessToken
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.logger.Debug("token refreshed", "expires_at", expiresAt)
	return tr.AccessToken, nil
}

// StaticToken supplies a fixed bearer token looked up on every call, for catalogs
// such as Genius that issue a long-lived client access token.
type StaticToken struct {
	Catalog string
	Name    string
	Lookup  func() string
}

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	token := s.Lookup()
	if err := songs.RequireSecrets(s.Catalog, s.Name, token); err != nil {
		return "", err
	}
	return token, nil
}

var (
	_ TokenSource = (*TokenCache)(nil)
	_ Invalidator = (*TokenCache)(nil)
	_ TokenSource = StaticToken{}
)
