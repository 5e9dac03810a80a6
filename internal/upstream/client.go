// Package upstream wraps outbound catalog HTTP calls: per-call timeout, client-side
// rate limiting, and mapping of transport failures and non-2xx responses to
// *songs.UpstreamError.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/justestif/go-song-swiper/internal/songs"
)

const (
	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 10 * time.Second

	userAgent = "go-song-swiper/1.0"
)

// ErrorDecoder extracts a human-readable message from a catalog error body.
// It returns "" when the body carries no message.
type ErrorDecoder func(body []byte) string

// NestedErrorMessage decodes the {"error":{"message":".."}} body shared by
// the Spotify Web API and Google APIs.
func NestedErrorMessage(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	return env.Error.Message
}

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	RateLimit    float64 // requests per second; 0 disables limiting
	HTTPClient   *http.Client
	ErrorDecoder ErrorDecoder
	Logger       *log.Logger
}

// Client issues GET requests against one catalog's API.
type Client struct {
	catalog   string
	rc        *resty.Client
	limiter   *rate.Limiter
	decodeErr ErrorDecoder
	logger    *log.Logger
}

// New creates a Client for catalog rooted at baseURL.
func New(catalog, baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		catalog:   catalog,
		rc:        rc,
		limiter:   limiter,
		decodeErr: opts.ErrorDecoder,
		logger:    logger.With("catalog", catalog),
	}
}

// Catalog returns the catalog name used in errors.
func (c *Client) Catalog() string {
	return c.catalog
}

// Request describes one GET call.
type Request struct {
	Path   string
	Query  map[string]string
	Bearer string
}

// Get performs the request and returns the raw body of a 2xx response.
func (c *Client) Get(ctx context.Context, r Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.transportError(err)
		}
	}

	req := c.rc.R().SetContext(ctx)
	if len(r.Query) > 0 {
		req.SetQueryParams(r.Query)
	}
	if r.Bearer != "" {
		req.SetAuthToken(r.Bearer)
	}

	start := time.Now()
	resp, err := req.Get(r.Path)
	if err != nil {
		c.logger.Warn("request failed", "path", r.Path, "err", err)
		return nil, c.transportError(err)
	}

	c.logger.Debug("request", "path", r.Path, "status", resp.StatusCode(), "elapsed", time.Since(start))

	if !resp.IsSuccess() {
		return nil, c.StatusError(resp.StatusCode(), resp.Body())
	}

	return resp.Body(), nil
}

// GetJSON performs the request and decodes a 2xx body into out.
// An undecodable body is reported as a malformed envelope.
func (c *Client) GetJSON(ctx context.Context, r Request, out any) error {
	body, err := c.Get(ctx, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.Malformed(http.StatusOK, fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}

// StatusError builds the error for a non-2xx response.
func (c *Client) StatusError(status int, body []byte) error {
	reason := ""
	if c.decodeErr != nil {
		reason = c.decodeErr(body)
	}
	if reason == "" {
		reason = fmt.Sprintf("%s responded with %d", c.catalog, status)
	}
	return &songs.UpstreamError{Catalog: c.catalog, Status: status, Reason: reason}
}

// Malformed builds the error for a 2xx response whose envelope is unusable.
func (c *Client) Malformed(status int, reason string) error {
	return &songs.UpstreamError{Catalog: c.catalog, Status: status, Reason: "malformed response: " + reason}
}

func (c *Client) transportError(err error) error {
	reason := err.Error()
	if IsTimeout(err) {
		reason = "timeout"
	}
	return &songs.UpstreamError{Catalog: c.catalog, Reason: reason, Err: err}
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
