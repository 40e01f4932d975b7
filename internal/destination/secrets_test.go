package destination

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeVault(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/kv/data/erp/basic" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{"password": "from-vault"},
				"metadata": map[string]any{
					"created_time":  "2024-01-01T00:00:00Z",
					"deletion_time": "",
					"destroyed":     false,
					"version":       1,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultResolver_ResolveSecret(t *testing.T) {
	t.Parallel()

	srv := newFakeVault(t)
	resolver, err := NewVaultResolver(VaultConfig{Address: srv.URL, Token: "test-token", Mount: "kv"})
	require.NoError(t, err)

	value, err := resolver.ResolveSecret(context.Background(), "erp/basic#password")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)

	_, err = resolver.ResolveSecret(context.Background(), "erp/basic#user")
	assert.Error(t, err)

	_, err = resolver.ResolveSecret(context.Background(), "erp/other#password")
	assert.Error(t, err)
}

func TestVaultResolver_InvalidReference(t *testing.T) {
	t.Parallel()

	resolver, err := NewVaultResolver(VaultConfig{Address: "http://127.0.0.1:1", Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "secret", resolver.mount)

	for _, ref := range []string{"no-key", "#key", "path#"} {
		_, err := resolver.ResolveSecret(context.Background(), ref)
		assert.Error(t, err, ref)
	}
}

func TestIsSecretRef(t *testing.T) {
	t.Parallel()

	ref, ok := isSecretRef("vault:a/b#c")
	assert.True(t, ok)
	assert.Equal(t, "a/b#c", ref)

	_, ok = isSecretRef("plain")
	assert.False(t, ok)
}
