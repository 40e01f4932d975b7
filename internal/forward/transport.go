package forward

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// maxRedirects bounds redirect following on the server side.
const maxRedirects = 10

// Options tunes the destination transports.
type Options struct {
	DialTimeout           time.Duration
	DialKeepAlive         time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultOptions returns transport settings suited to a local proxy.
func DefaultOptions() Options {
	return Options{
		DialTimeout:           10 * time.Second,
		DialKeepAlive:         30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Transports holds one round tripper per TLS policy, each with and without
// redirect following.
type Transports struct {
	strict   *http.Transport
	insecure *http.Transport

	strictRedirect   http.RoundTripper
	insecureRedirect http.RoundTripper
}

// NewTransports builds the transports.
func NewTransports(opts Options) *Transports {
	t := &Transports{
		strict:   newTransport(opts, true),
		insecure: newTransport(opts, false),
	}
	t.strictRedirect = &redirectFollower{client: redirectClient(t.strict)}
	t.insecureRedirect = &redirectFollower{client: redirectClient(t.insecure)}
	return t
}

// For returns the round tripper matching cfg.
func (t *Transports) For(cfg Config) http.RoundTripper {
	switch {
	case cfg.VerifyTLS && cfg.FollowRedirects:
		return t.strictRedirect
	case cfg.VerifyTLS:
		return t.strict
	case cfg.FollowRedirects:
		return t.insecureRedirect
	default:
		return t.insecure
	}
}

// TLSConfig returns a TLS client configuration for dialing destinations
// outside the transports, such as websocket upgrades.
func (t *Transports) TLSConfig(verify bool) *tls.Config {
	if verify {
		return t.strict.TLSClientConfig.Clone()
	}
	return t.insecure.TLSClientConfig.Clone()
}

// CloseIdle closes idle connections on all transports.
func (t *Transports) CloseIdle() {
	t.strict.CloseIdleConnections()
	t.insecure.CloseIdleConnections()
}

func newTransport(opts Options, verify bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: opts.DialKeepAlive,
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !verify, MinVersion: tls.VersionTLS12}, //nolint:gosec // off only when strictSSL is false
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       opts.IdleConnTimeout,
		TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
		ExpectContinueTimeout: opts.ExpectContinueTimeout,
	}
	if opts.ResponseHeaderTimeout > 0 {
		tr.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
	}
	return tr
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

func redirectClient(rt http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: rt,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w (%d)", errTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}
}

// redirectFollower is a RoundTripper that follows redirects before handing
// the final response back to the reverse proxy.
type redirectFollower struct {
	client *http.Client
}

func (f *redirectFollower) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.RequestURI = ""
	resp, err := f.client.Do(out)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
