package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/devproxy/internal/destination"
	"github.com/vyrodovalexey/devproxy/internal/observability"
	"github.com/vyrodovalexey/devproxy/internal/route"
	"github.com/vyrodovalexey/devproxy/internal/util"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Host   string
	Header http.Header
}

type recordingBackend struct {
	*httptest.Server
	mu   sync.Mutex
	seen []seenRequest
}

func newRecordingBackend(t *testing.T, handler http.HandlerFunc) *recordingBackend {
	t.Helper()

	b := &recordingBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.seen = append(b.seen, seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Host:   r.Host,
			Header: r.Header.Clone(),
		})
		b.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *recordingBackend) last(t *testing.T) seenRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.seen)
	return b.seen[len(b.seen)-1]
}

func csrfBackend(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-CSRF-Token") == destination.FetchToken {
		w.Header().Set("X-CSRF-Token", "issued-token")
		http.SetCookie(w, &http.Cookie{Name: "SAP_SESSIONID", Value: "abc", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "sap-usercontext", Value: "sap-client=100"})
	}
	_, _ = io.WriteString(w, "ok")
}

func erpState(t *testing.T, backendURL string) *State {
	t.Helper()
	return newState(t,
		[]destination.Seed{{Name: "erp", URL: backendURL, User: "dev", Password: "pw", WebIDEUsage: "odata_abap"}},
		nil,
		route.Entry{Prefix: "/sap/opu/odata", Target: route.DestinationTarget("erp"), EntryPath: "/sap/opu/odata"},
	)
}

func TestProxy_ForwardsWithCredentialLifecycle(t *testing.T) {
	t.Parallel()

	backend := newRecordingBackend(t, csrfBackend)
	state := erpState(t, backend.URL)
	handler := New(state).Handler(nil)

	// First request solicits a token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://localhost:8080/sap/opu/odata/SVC/$metadata?sap-language=EN", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	first := backend.last(t)
	assert.Equal(t, "/sap/opu/odata/SVC/$metadata", first.Path)
	assert.Equal(t, "sap-language=EN", first.Query)
	assert.Equal(t, "Basic ZGV2OnB3", first.Header.Get("Authorization"))
	assert.Equal(t, destination.FetchToken, first.Header.Get("X-CSRF-Token"))
	assert.Empty(t, first.Header.Get("Cookie"))
	assert.Equal(t, strings.TrimPrefix(backend.URL, "http://"), first.Host)
	assert.Equal(t, "localhost:8080", first.Header.Get("X-Forwarded-Host"))

	rec2, _ := state.Registry().Lookup("erp")
	creds := rec2.Credentials()
	assert.True(t, creds.Locked)
	assert.Equal(t, "issued-token", creds.Token)
	assert.Equal(t, "SAP_SESSIONID=abc; sap-usercontext=sap-client=100", creds.Cookie)

	// A state-changing request reuses the captured credentials.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sap/opu/odata/SVC/Items", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	second := backend.last(t)
	assert.Equal(t, http.MethodPost, second.Method)
	assert.Equal(t, "issued-token", second.Header.Get("X-CSRF-Token"))
	assert.Equal(t, "SAP_SESSIONID=abc; sap-usercontext=sap-client=100", second.Header.Get("Cookie"))

	// A read does not carry the held token.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/SVC/Items", nil))
	assert.Empty(t, backend.last(t).Header.Get("X-CSRF-Token"))
}

func TestProxy_ForwardFailureResetsCredentials(t *testing.T) {
	t.Parallel()

	backend := newRecordingBackend(t, csrfBackend)
	state := erpState(t, backend.URL)

	var gotErr error
	p := New(state, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	handler := p.Handler(nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	backend.Close()

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.Error(t, gotErr)
	assert.True(t, errors.Is(gotErr, util.ErrForwardFailed))
	var fwdErr *util.ForwardError
	require.True(t, errors.As(gotErr, &fwdErr))
	assert.Equal(t, "erp", fwdErr.Destination)

	erp, _ := state.Registry().Lookup("erp")
	assert.Equal(t, destination.Credentials{Token: destination.FetchToken}, erp.Credentials())
}

func TestProxy_DefaultErrorHandler(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	metrics := observability.NewMetrics("test")
	handler := New(erpState(t, url), WithMetrics(metrics)).Handler(nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad gateway", body["error"])

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "test_forward_failures_total" {
			found = true
			assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestProxy_UnresolvedPassesThrough(t *testing.T) {
	t.Parallel()

	state := erpState(t, "http://127.0.0.1:1")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "next:"+r.URL.Path)
	})

	rec := httptest.NewRecorder()
	New(state).Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "next:/index.html", rec.Body.String())

	rec = httptest.NewRecorder()
	New(state).Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxy_ServesLocalMirror(t *testing.T) {
	t.Parallel()

	var servedPath string
	mirror := stubMirror{
		files: map[string]bool{"/resources/sap-ui-core.js": true},
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			servedPath = r.URL.Path
			_, _ = io.WriteString(w, "local")
		}),
	}
	state := newState(t,
		[]destination.Seed{{Name: "sapui5", URL: "http://127.0.0.1:1"}},
		mirror,
		route.Entry{Prefix: "/resources", Target: route.ServiceTarget("sapui5"), EntryPath: "/resources"},
	)

	rec := httptest.NewRecorder()
	New(state).Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resources/sap-ui-core.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local", rec.Body.String())
	assert.Equal(t, "/resources/sap-ui-core.js", servedPath)
}

func TestProxy_Swap(t *testing.T) {
	t.Parallel()

	backend := newRecordingBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "backend")
	})

	empty := newState(t, nil, nil)
	p := New(empty)
	handler := p.Handler(nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	next := erpState(t, backend.URL)
	p.Swap(next)
	assert.Same(t, next, p.State())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))
	assert.Equal(t, "backend", rec.Body.String())
}

func TestProxy_OutcomeMetrics(t *testing.T) {
	t.Parallel()

	backend := newRecordingBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	metrics := observability.NewMetrics("test")
	handler := observability.MetricsMiddleware(metrics)(New(erpState(t, backend.URL), WithMetrics(metrics)).Handler(nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	expected := `
# HELP test_requests_total Total number of HTTP requests by dispatch outcome
# TYPE test_requests_total counter
test_requests_total{method="GET",outcome="proxy",status="202"} 1
test_requests_total{method="GET",outcome="unresolved",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "test_requests_total"))
}

func TestProxy_WebSocketRequestDetection(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, isWebSocketUpgrade(r))

	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Connection", "keep-alive, Upgrade")
	assert.True(t, isWebSocketUpgrade(r))
}

func TestProxy_ChangeOriginDisabledKeepsHost(t *testing.T) {
	t.Parallel()

	backend := newRecordingBackend(t, func(http.ResponseWriter, *http.Request) {})
	state := erpState(t, backend.URL)
	p := New(state)

	res := state.ResolveAndDispatch(t.Context(), httptest.NewRequest(http.MethodGet, "/sap/opu/odata/x", nil))
	res.Forward.ChangeOrigin = false

	r := httptest.NewRequest(http.MethodGet, "http://app.local/sap/opu/odata/x", nil)
	rec := httptest.NewRecorder()
	p.serveProxy(rec, r, state, res)

	assert.Equal(t, "app.local", backend.last(t).Host)
}

func TestCookiePairs(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	assert.Nil(t, cookiePairs(resp))

	resp.Header.Add("Set-Cookie", "a=1; Path=/; HttpOnly")
	resp.Header.Add("Set-Cookie", "b=2; Secure")
	assert.Equal(t, []string{"a=1", "b=2"}, cookiePairs(resp))
}
