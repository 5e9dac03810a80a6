package songs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrMissingCredentials is matched by every *ConfigError.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUpstreamAuth is matched by every *AuthError.
	ErrUpstreamAuth = errors.New("upstream authentication failed")

	// ErrUpstreamUnavailable is matched by every *UpstreamError.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ConfigError reports required catalog credentials that are not set.
type ConfigError struct {
	Catalog string
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: server configuration error: missing %s", e.Catalog, strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingCredentials
}

// AuthError reports a failed token request against a catalog's token endpoint.
type AuthError struct {
	Catalog string
	Status  int // 0 when no HTTP response was received
	Err     error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: token request failed with status %d", e.Catalog, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: token request failed: %v", e.Catalog, e.Err)
	}
	return fmt.Sprintf("%s: token request failed", e.Catalog)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUpstreamAuth
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UpstreamError reports a non-2xx response, timeout or malformed envelope from a catalog data endpoint.
type UpstreamError struct {
	Catalog string
	Status  int // 0 when no HTTP response was received
	Reason  string
	Err     error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s upstream unavailable", e.Catalog)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RequireSecrets returns a *ConfigError naming every empty value in kv.
// kv alternates name, value.
func RequireSecrets(catalog string, kv ...string) error {
	var missing []string
	for i := 0; i+1 < len(kv); i += 2 {
		if strings.TrimSpace(kv[i+1]) == "" {
			missing = append(missing, kv[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ConfigError{Catalog: catalog, Missing: missing}
}
