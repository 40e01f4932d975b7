package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/devproxy/internal/observability"
)

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// AllowOrigin is sent verbatim. "*" allows every origin.
	AllowOrigin      string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns the permissive header set a local development
// server needs to be called from any page.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin: "*",
		AllowMethods: []string{
			"DELETE", "GET", "HEAD", "MERGE", "OPTIONS", "PATCH", "POST", "PUT",
		},
		AllowHeaders: []string{
			"Accept", "Authorization", "Content-Type", "Origin", "Referer",
			"User-Agent", "X-Mindflash-SessionID", "X-Requested-With",
		},
		AllowCredentials: true,
	}
}

// corsHeaders holds pre-computed CORS header values.
type corsHeaders struct {
	allowOrigin      string
	allowMethods     string
	allowHeaders     string
	maxAge           string
	allowCredentials bool
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	h := &corsHeaders{
		allowOrigin:      cfg.AllowOrigin,
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if h.allowOrigin == "" {
		h.allowOrigin = "*"
	}
	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return h
}

func (h *corsHeaders) set(header http.Header) {
	header.Set(HeaderAllowOrigin, h.allowOrigin)
	if h.allowOrigin != "*" {
		header.Add("Vary", HeaderOrigin)
	}
	if h.allowCredentials {
		header.Set(HeaderAllowCredentials, "true")
	}
	if h.allowMethods != "" {
		header.Set(HeaderAllowMethods, h.allowMethods)
	}
	if h.allowHeaders != "" {
		header.Set(HeaderAllowHeaders, h.allowHeaders)
	}
	if h.maxAge != "" {
		header.Set(HeaderMaxAge, h.maxAge)
	}
}

// CORS returns a middleware that appends the CORS header set to every
// response. OPTIONS requests are answered with 200 and never reach next.
//
// Headers are written before next runs, so a proxied response that carries
// its own Access-Control-* headers overrides these.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	headers := newCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers.set(w.Header())

			if r.Method == http.MethodOptions {
				observability.SetOutcome(r.Context(), observability.OutcomePreflight)
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
