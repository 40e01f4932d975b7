package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/devproxy/internal/observability"
	"github.com/vyrodovalexey/devproxy/internal/util"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		target         string
		handler        http.HandlerFunc
		expectedStatus int
		expectedSize   int
	}{
		{
			name:   "logs successful GET request",
			method: http.MethodGet,
			target: "/sap/opu/odata/SVC/Items?$top=1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"d":[]}`))
			},
			expectedStatus: http.StatusOK,
			expectedSize:   8,
		},
		{
			name:   "logs POST request",
			method: http.MethodPost,
			target: "/sap/opu/odata/SVC/Items",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "logs bad gateway",
			method: http.MethodGet,
			target: "/backend",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.WriteHeader(http.StatusOK)
			},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := observability.NewLogger(observability.LogConfig{Format: "json", Writer: &buf})
			require.NoError(t, err)

			handler := RequestIDWithGenerator(func() string { return "req-1" })(Logging(logger)(tt.handler))
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.RemoteAddr = "192.0.2.10:51234"
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "http request", entry["message"])
			assert.Equal(t, tt.method, entry["method"])
			assert.Equal(t, req.URL.Path, entry["path"])
			assert.Equal(t, req.URL.RawQuery, entry["query"])
			assert.InDelta(t, tt.expectedStatus, entry["status"], 0)
			assert.InDelta(t, tt.expectedSize, entry["size"], 0)
			assert.Equal(t, "192.0.2.10", entry["client_ip"])
			assert.Equal(t, "req-1", entry["request_id"])
		})
	}
}

func TestLogging_StartTimeInContext(t *testing.T) {
	t.Parallel()

	var start time.Time
	handler := Logging(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start = util.StartTimeFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, start.IsZero())
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestResponseWriter_Hijack(t *testing.T) {
	t.Parallel()

	t.Run("delegates to underlying writer", func(t *testing.T) {
		t.Parallel()

		under := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
		rw := &responseWriter{ResponseWriter: under, status: http.StatusOK}

		_, _, err := rw.Hijack()

		require.NoError(t, err)
		assert.True(t, under.hijacked)
		assert.Equal(t, http.StatusSwitchingProtocols, rw.status)
	})

	t.Run("fails when unsupported", func(t *testing.T) {
		t.Parallel()

		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

		_, _, err := rw.Hijack()

		assert.Error(t, err)
	})
}

func TestResponseWriter_Flush(t *testing.T) {
	t.Parallel()

	under := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: under, status: http.StatusOK}

	rw.Flush()

	assert.True(t, under.Flushed)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-a-host-port"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	assert.Equal(t, "not-a-host-port", clientIP(req))
}
