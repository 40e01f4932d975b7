package forward

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/vyrodovalexey/devproxy/internal/destination"
)

// Forwarded request headers set from destination credentials.
const (
	HeaderAuthorization = "Authorization"
	HeaderCookie        = "Cookie"
	HeaderCSRFToken     = "X-CSRF-Token"
)

// Config describes how one request is forwarded.
type Config struct {
	Target            string
	Headers           map[string]string
	VerifyTLS         bool
	FollowRedirects   bool
	PreserveWebsocket bool
	ChangeOrigin      bool
}

// Build composes the forward configuration for rec. Each header is set only
// when its value is non-empty. The token header is sent when the stored
// token asks the backend for a fresh one, or when method can change state.
func Build(rec *destination.Record, method string, verifyTLS bool) Config {
	creds := rec.Credentials()
	headers := make(map[string]string, 3)

	if v := rec.Authorization(); v != "" {
		headers[HeaderAuthorization] = v
	}
	if creds.Cookie != "" {
		headers[HeaderCookie] = creds.Cookie
	}
	if creds.Token != "" && (creds.Token == destination.FetchToken || IsStateChanging(method)) {
		headers[HeaderCSRFToken] = creds.Token
	}

	return Config{
		Target:            rec.URL(),
		Headers:           headers,
		VerifyTLS:         verifyTLS,
		FollowRedirects:   true,
		PreserveWebsocket: true,
		ChangeOrigin:      rec.URL() != "",
	}
}

// IsStateChanging reports whether method may change server state.
func IsStateChanging(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// TargetURL parses the target as an absolute http or https URL.
func (c Config) TargetURL() (*url.URL, error) {
	u, err := url.Parse(c.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", c.Target, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid target %q: need an absolute http or https URL", c.Target)
	}
	return u, nil
}

// Apply sets the configured headers on h, replacing existing values.
func (c Config) Apply(h http.Header) {
	for k, v := range c.Headers {
		h.Set(k, v)
	}
}
