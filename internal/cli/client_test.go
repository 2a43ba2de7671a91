package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := SessionStore{Dir: t.TempDir()}

	_, err := store.Load()
	require.Error(t, err)

	require.NoError(t, store.Save(Session{AccessToken: "tok", AccountID: "acct-1", Email: "a@example.com"}))
	sess, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "acct-1", sess.AccountID)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load()
	require.Error(t, err)
}

func TestClientSendsTokenAndDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "missing bearer token"})
			return
		}
		switch r.URL.Path {
		case "/v1/market/swords/buy":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["quantity"].(float64) > 5 {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "insufficient gold", "kind": "precondition"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"gold_delta": -20, "gold": 80, "anvil_sword_tier": nil})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	res, err := c.BuySword(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.Gold)
	assert.Nil(t, res.Anvil)

	_, err = c.BuySword(context.Background(), 1, 9)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "precondition", apiErr.Kind)
	assert.Equal(t, "insufficient gold", apiErr.Message)

	_, err = NewClient(srv.URL, "").Dashboard(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
