// Package adverify checks server-side verification callbacks sent by the ad
// network after a rewarded ad completes. The network signs the callback query
// with ECDSA and publishes its rotating public keys at a fixed URL.
package adverify

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"swordsmith/internal/retry"
)

// DefaultKeysURL is where the ad network publishes its verifier keys.
const DefaultKeysURL = "https://www.gstatic.com/admob/reward/verifier-keys.json"

var (
	ErrMissingSignature = errors.New("callback is missing signature or key_id")
	ErrBadSignature     = errors.New("callback signature does not verify")
	ErrUnknownKey       = errors.New("callback signed with unknown key")
	ErrKeyFetch         = errors.New("fetch verifier keys")
	ErrMissingNonce     = errors.New("callback is missing custom_data")
	ErrMalformedField   = errors.New("callback field is malformed")
)

// Callback holds the fields of a verified callback the engine cares about.
type Callback struct {
	AdNetwork     string
	AdUnit        string
	RewardItem    string
	RewardAmount  int64
	TransactionID string
	UserID        string
	Nonce         string
	KeyID         int64
	Timestamp     time.Time
}

type cachedKey struct {
	key       *ecdsa.PublicKey
	fetchedAt time.Time
}

type Verifier struct {
	keysURL string
	client  *http.Client
	keys    *lru.Cache
	ttl     time.Duration
	policy  retry.Policy
	now     func() time.Time
	log     *slog.Logger

	refreshMu sync.Mutex
}

type Option func(*Verifier)

func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.client = c }
}

func WithKeyTTL(ttl time.Duration) Option {
	return func(v *Verifier) { v.ttl = ttl }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(v *Verifier) { v.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

func New(keysURL string, opts ...Option) (*Verifier, error) {
	if strings.TrimSpace(keysURL) == "" {
		keysURL = DefaultKeysURL
	}
	cache, err := lru.New(64)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	v := &Verifier{
		keysURL: keysURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		keys:    cache,
		ttl:     24 * time.Hour,
		policy: retry.Policy{
			MaxAttempts:     4,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Jitter:          0.2,
		},
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature over rawQuery and returns the parsed callback.
// The signed message is everything before the signature parameter, which the
// network always places second to last, followed by key_id.
func (v *Verifier) Verify(ctx context.Context, rawQuery string) (Callback, error) {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	idx := strings.Index(rawQuery, "&signature=")
	if idx <= 0 {
		return Callback{}, ErrMissingSignature
	}
	message := rawQuery[:idx]

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	sigText := values.Get("signature")
	keyText := values.Get("key_id")
	if sigText == "" || keyText == "" {
		return Callback{}, ErrMissingSignature
	}
	keyID, err := strconv.ParseInt(keyText, 10, 64)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: key_id %q", ErrMissingSignature, keyText)
	}
	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(sigText, "="))
	if err != nil {
		return Callback{}, fmt.Errorf("%w: decode signature: %v", ErrBadSignature, err)
	}

	key, err := v.key(ctx, keyID)
	if err != nil {
		return Callback{}, err
	}
	digest := sha256.Sum256([]byte(message))
	if !ecdsa.VerifyASN1(key, digest[:], sig) {
		return Callback{}, ErrBadSignature
	}

	cb := Callback{
		AdNetwork:     values.Get("ad_network"),
		AdUnit:        values.Get("ad_unit"),
		RewardItem:    values.Get("reward_item"),
		TransactionID: values.Get("transaction_id"),
		UserID:        values.Get("user_id"),
		Nonce:         values.Get("custom_data"),
		KeyID:         keyID,
	}
	if amount := values.Get("reward_amount"); amount != "" {
		n, err := strconv.ParseInt(amount, 10, 64)
		if err != nil || n < 0 {
			return cb, fmt.Errorf("%w: reward_amount %q", ErrMalformedField, amount)
		}
		cb.RewardAmount = n
	}
	if ts := values.Get("timestamp"); ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return cb, fmt.Errorf("%w: timestamp %q", ErrMalformedField, ts)
		}
		cb.Timestamp = time.UnixMilli(ms).UTC()
	}
	if cb.Nonce == "" {
		return cb, ErrMissingNonce
	}
	return cb, nil
}

func (v *Verifier) cached(keyID int64) (*ecdsa.PublicKey, bool) {
	raw, ok := v.keys.Get(keyID)
	if !ok {
		return nil, false
	}
	entry := raw.(cachedKey)
	if v.now().Sub(entry.fetchedAt) > v.ttl {
		return nil, false
	}
	return entry.key, true
}

func (v *Verifier) key(ctx context.Context, keyID int64) (*ecdsa.PublicKey, error) {
	if k, ok := v.cached(keyID); ok {
		return k, nil
	}

	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()
	// another caller may have refreshed while we waited
	if k, ok := v.cached(keyID); ok {
		return k, nil
	}
	if err := v.Refresh(ctx); err != nil {
		return nil, err
	}
	if k, ok := v.cached(keyID); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKey, keyID)
}

type keyDocument struct {
	Keys []struct {
		KeyID  int64  `json:"keyId"`
		PEM    string `json:"pem"`
		Base64 string `json:"base64"`
	} `json:"keys"`
}

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func retryableFetch(err error) bool {
	var se statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, errDecode)
}

var errDecode = errors.New("decode key document")

// Refresh downloads the published key set and replaces the cached keys.
func (v *Verifier) Refresh(ctx context.Context) error {
	var doc keyDocument
	err := retry.Do(ctx, v.policy, retryableFetch, func(attempt int) error {
		d, err := v.fetch(ctx)
		if err != nil {
			v.log.Warn("verifier key fetch failed", "attempt", attempt, "error", err)
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}

	now := v.now()
	loaded := 0
	for _, k := range doc.Keys {
		pub, err := parseKey(k.PEM, k.Base64)
		if err != nil {
			v.log.Warn("skipping verifier key", "key_id", k.KeyID, "error", err)
			continue
		}
		v.keys.Add(k.KeyID, cachedKey{key: pub, fetchedAt: now})
		loaded++
	}
	v.log.Info("verifier keys refreshed", "keys", loaded)
	return nil
}

func (v *Verifier) fetch(ctx context.Context) (keyDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.keysURL, nil)
	if err != nil {
		return keyDocument{}, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return keyDocument{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return keyDocument{}, statusError{code: resp.StatusCode}
	}
	var doc keyDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return keyDocument{}, fmt.Errorf("%w: %v", errDecode, err)
	}
	return doc, nil
}

func parseKey(pemText, b64 string) (*ecdsa.PublicKey, error) {
	var der []byte
	if block, _ := pem.Decode([]byte(pemText)); block != nil {
		der = block.Bytes
	} else {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		der = raw
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	ec, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is %T, want ECDSA", pub)
	}
	return ec, nil
}
