package destination

import (
	"encoding/base64"
	"strings"
	"sync"
)

// Anti-forgery token values with special meaning.
const (
	// FetchToken asks the backend to issue a fresh token.
	FetchToken = "Fetch"

	// RequiredToken is returned by a backend that demands a fresh fetch.
	RequiredToken = "Required"
)

// csrfUsageMarker in a descriptor's WebIDEUsage enables token handling.
const csrfUsageMarker = "odata"

// TokenState describes the anti-forgery token held for a destination.
type TokenState int

// Token states.
const (
	TokenNotRequired TokenState = iota
	TokenNeedsFetch
	TokenHeld
)

// String returns a readable name for the state.
func (s TokenState) String() string {
	switch s {
	case TokenNotRequired:
		return "not-required"
	case TokenNeedsFetch:
		return "needs-fetch"
	case TokenHeld:
		return "held"
	default:
		return "unknown"
	}
}

// Seed is a destination descriptor as read from a destination source.
type Seed struct {
	Name        string
	URL         string
	User        string
	Password    string
	WebIDEUsage string
	PreferLocal bool
}

// Credentials is a point-in-time copy of a record's mutable state.
type Credentials struct {
	Cookie string
	Token  string
	Locked bool
}

// TokenState classifies the stored token.
func (c Credentials) TokenState() TokenState {
	switch c.Token {
	case "":
		return TokenNotRequired
	case FetchToken:
		return TokenNeedsFetch
	default:
		return TokenHeld
	}
}

// Record is one destination and its credential state.
type Record struct {
	name          string
	url           string
	authorization string
	preferLocal   bool

	mu     sync.Mutex
	cookie string
	token  string
	locked bool
}

// NewRecord derives a record from a descriptor. The Authorization header is
// computed once here; the token starts as FetchToken when the descriptor's
// usage hint enables anti-forgery handling.
func NewRecord(seed Seed) *Record {
	r := &Record{
		name:        seed.Name,
		url:         strings.ReplaceAll(seed.URL, `\`, ""),
		preferLocal: seed.PreferLocal,
	}
	if seed.User != "" {
		r.authorization = BasicAuthorization(seed.User, seed.Password)
	}
	if strings.Contains(seed.WebIDEUsage, csrfUsageMarker) {
		r.token = FetchToken
	}
	return r
}

// BasicAuthorization returns the value of a Basic Authorization header.
func BasicAuthorization(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// Name returns the destination name.
func (r *Record) Name() string { return r.name }

// URL returns the base URL of the destination, possibly empty.
func (r *Record) URL() string { return r.url }

// Authorization returns the precomputed Authorization header, possibly empty.
func (r *Record) Authorization() string { return r.authorization }

// PreferLocal reports the descriptor's preferLocal flag.
func (r *Record) PreferLocal() bool { return r.preferLocal }

// Credentials returns a copy of the current credential state.
func (r *Record) Credentials() Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Credentials{Cookie: r.cookie, Token: r.token, Locked: r.locked}
}

// lock applies a captured response if the record is unlocked. It reports
// whether the capture was honored.
func (r *Record) lock(cookies []string, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		return false
	}

	r.locked = true
	r.cookie = strings.Join(cookies, "; ")
	if token == RequiredToken {
		r.token = FetchToken
	} else {
		r.token = token
	}
	return true
}

// unlock resets credentials if the record is locked. It reports whether
// anything changed.
func (r *Record) unlock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.locked {
		return false
	}

	r.locked = false
	r.cookie = ""
	r.token = FetchToken
	return true
}
