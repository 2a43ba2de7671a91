package adverify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swordsmith/internal/retry"
)

type keyServer struct {
	*httptest.Server
	hits     atomic.Int32
	failures atomic.Int32
}

func newKeyServer(t *testing.T, keys map[int64]*ecdsa.PrivateKey) *keyServer {
	t.Helper()
	ks := &keyServer{}
	type entry struct {
		KeyID int64  `json:"keyId"`
		PEM   string `json:"pem"`
	}
	var doc struct {
		Keys []entry `json:"keys"`
	}
	for id, k := range keys {
		der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
		require.NoError(t, err)
		block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
		doc.Keys = append(doc.Keys, entry{KeyID: id, PEM: string(block)})
	}
	ks.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.hits.Add(1)
		if ks.failures.Load() > 0 {
			ks.failures.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(ks.Close)
	return ks
}

func signQuery(t *testing.T, key *ecdsa.PrivateKey, keyID, message string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(message))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)
	return message + "&signature=" + base64.RawURLEncoding.EncodeToString(sig) + "&key_id=" + keyID
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return k
}

func newVerifier(t *testing.T, url string, opts ...Option) *Verifier {
	t.Helper()
	opts = append([]Option{WithRetryPolicy(retry.Immediate(3))}, opts...)
	v, err := New(url, opts...)
	require.NoError(t, err)
	return v
}

const callbackMessage = "ad_network=5450213213286189855&ad_unit=1234567890&custom_data=nonce-1" +
	"&reward_amount=1&reward_item=Reward&timestamp=1700000000000&transaction_id=tx-9&user_id=acct-1"

func TestVerifyAcceptsSignedCallback(t *testing.T) {
	key := newKey(t)
	ks := newKeyServer(t, map[int64]*ecdsa.PrivateKey{42: key})
	v := newVerifier(t, ks.URL)

	cb, err := v.Verify(context.Background(), signQuery(t, key, "42", callbackMessage))
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", cb.Nonce)
	assert.Equal(t, "acct-1", cb.UserID)
	assert.Equal(t, "tx-9", cb.TransactionID)
	assert.Equal(t, int64(1), cb.RewardAmount)
	assert.Equal(t, int64(42), cb.KeyID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), cb.Timestamp)

	_, err = v.Verify(context.Background(), signQuery(t, key, "42", callbackMessage))
	require.NoError(t, err)
	assert.Equal(t, int32(1), ks.hits.Load())
}

func TestVerifyRejectsTamperedOrUnsigned(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	ks := newKeyServer(t, map[int64]*ecdsa.PrivateKey{42: key})
	v := newVerifier(t, ks.URL)
	ctx := context.Background()

	signed := signQuery(t, key, "42", callbackMessage)
	tampered := "ad_network=1" + signed[len("ad_network=5450213213286189855"):]
	_, err := v.Verify(ctx, tampered)
	require.ErrorIs(t, err, ErrBadSignature)

	_, err = v.Verify(ctx, signQuery(t, other, "42", callbackMessage))
	require.ErrorIs(t, err, ErrBadSignature)

	_, err = v.Verify(ctx, callbackMessage)
	require.ErrorIs(t, err, ErrMissingSignature)

	_, err = v.Verify(ctx, signQuery(t, key, "7", callbackMessage))
	require.ErrorIs(t, err, ErrUnknownKey)

	noNonce := "ad_network=1&reward_amount=1&user_id=acct-1"
	_, err = v.Verify(ctx, signQuery(t, key, "42", noNonce))
	require.ErrorIs(t, err, ErrMissingNonce)
}

func TestVerifyRejectsMalformedSignedFields(t *testing.T) {
	key := newKey(t)
	ks := newKeyServer(t, map[int64]*ecdsa.PrivateKey{42: key})
	v := newVerifier(t, ks.URL)

	tests := []struct {
		name    string
		message string
	}{
		{"non-numeric amount", "custom_data=nonce-1&reward_amount=abc&user_id=acct-1"},
		{"negative amount", "custom_data=nonce-1&reward_amount=-5&user_id=acct-1"},
		{"overflowing amount", "custom_data=nonce-1&reward_amount=99999999999999999999&user_id=acct-1"},
		{"non-numeric timestamp", "custom_data=nonce-1&timestamp=yesterday&user_id=acct-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), signQuery(t, key, "42", tt.message))
			require.ErrorIs(t, err, ErrMalformedField)
			assert.NotErrorIs(t, err, ErrBadSignature)
		})
	}

	cb, err := v.Verify(context.Background(), signQuery(t, key, "42", "custom_data=nonce-1&user_id=acct-1"))
	require.NoError(t, err)
	assert.Zero(t, cb.RewardAmount)
	assert.True(t, cb.Timestamp.IsZero())
}

func TestKeysRefetchAfterTTL(t *testing.T) {
	key := newKey(t)
	ks := newKeyServer(t, map[int64]*ecdsa.PrivateKey{42: key})
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	v := newVerifier(t, ks.URL, WithKeyTTL(time.Hour), WithClock(func() time.Time { return now }))
	query := signQuery(t, key, "42", callbackMessage)

	_, err := v.Verify(context.Background(), query)
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	_, err = v.Verify(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ks.hits.Load())

	now = now.Add(time.Hour)
	_, err = v.Verify(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ks.hits.Load())
}

func TestKeyFetchRetriesServerErrors(t *testing.T) {
	key := newKey(t)
	ks := newKeyServer(t, map[int64]*ecdsa.PrivateKey{42: key})
	ks.failures.Store(2)
	v := newVerifier(t, ks.URL)

	_, err := v.Verify(context.Background(), signQuery(t, key, "42", callbackMessage))
	require.NoError(t, err)
	assert.Equal(t, int32(3), ks.hits.Load())

	v.keys.Purge()
	ks.failures.Store(5)
	_, err = v.Verify(context.Background(), signQuery(t, key, "42", callbackMessage))
	require.ErrorIs(t, err, ErrKeyFetch)
}
