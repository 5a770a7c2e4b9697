package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeVault(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/kubernetes/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["jwt"] != "k8s-jwt" || body["role"] != "mint-relayer" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"auth":{"client_token":"s.vault"}}`))
	})
	mux.HandleFunc("/v1/secret/data/mint-relayer", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "s.vault" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"data":{"relayer_private_key":"0xabc","count":3}}}`))
	})
	return httptest.NewServer(mux)
}

func writeToken(t *testing.T, token string) string {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(token+"\n"), 0o600))
	return path
}

func TestVaultClient_GetKV(t *testing.T) {
	srv := fakeVault(t)
	defer srv.Close()

	vc, err := newClient(context.Background(), srv.URL, "/secret/data/mint-relayer", "mint-relayer", writeToken(t, "k8s-jwt"))
	require.NoError(t, err)

	secret, err := vc.GetKV(context.Background(), "relayer_private_key")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", secret)

	_, err = vc.GetKV(context.Background(), "missing")
	assert.Error(t, err)

	_, err = vc.GetKV(context.Background(), "count")
	assert.Error(t, err)
}

func TestVaultClient_LoginRejected(t *testing.T) {
	srv := fakeVault(t)
	defer srv.Close()

	_, err := newClient(context.Background(), srv.URL, "secret/data/mint-relayer", "mint-relayer", writeToken(t, "wrong"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestVaultClient_MissingServiceAccountToken(t *testing.T) {
	_, err := newClient(context.Background(), "http://127.0.0.1:1", "secret/data/x", "r", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
