package game

import (
	crand "crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"sync"
	"time"
)

// Random is the source of upgrade rolls and drop draws.
type Random interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// Int63n returns a uniform value in [0, n).
	Int63n(n int64) int64
}

type lockedRand struct {
	mu sync.Mutex
	r  *mathrand.Rand
}

func newLockedRand() *lockedRand {
	var b [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return &lockedRand{r: mathrand.New(mathrand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

const voucherAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%&*+=?"

// generateVoucherCode draws a code from a wide alphabet so collisions stay rare
// even with many live vouchers.
func generateVoucherCode() (string, error) {
	buf := make([]byte, voucherCodeLength)
	max := big.NewInt(int64(len(voucherAlphabet)))
	for i := range buf {
		n, err := crand.Int(crand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate voucher code: %w", err)
		}
		buf[i] = voucherAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func generateNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
