package game

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swordsmith/internal/catalog"
)

func TestDebitRejectsOverdraw(t *testing.T) {
	tests := []struct {
		balance Balance
		want    error
	}{
		{BalanceGold, ErrInsufficientFunds},
		{BalanceTrustPoints, ErrInsufficientTrust},
		{BalanceShields, ErrInsufficientShield},
	}
	for _, tc := range tests {
		t.Run(tc.balance.String(), func(t *testing.T) {
			acct := Account{}
			require.NoError(t, credit(&acct, tc.balance, 5))
			require.NoError(t, debit(&acct, tc.balance, 5))
			assert.Equal(t, int64(0), *acct.balance(tc.balance))

			err := debit(&acct, tc.balance, 1)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, int64(0), *acct.balance(tc.balance))
		})
	}
}

func TestCreditRejectsNegativeAndOverflow(t *testing.T) {
	acct := Account{Gold: math.MaxInt64 - 1}
	require.ErrorIs(t, credit(&acct, BalanceGold, -1), ErrInvalidInput)
	require.ErrorIs(t, credit(&acct, BalanceGold, 2), ErrInvalidInput)
	assert.Equal(t, int64(math.MaxInt64-1), acct.Gold)
}

func TestAdjustSwordNeverGoesNegative(t *testing.T) {
	s := SwordStock{Tier: 2, Unsold: 1}
	require.NoError(t, adjustSword(&s, StockDelta{Unsold: -1, Broken: 1}))
	assert.Equal(t, SwordStock{Tier: 2, Unsold: 0, Broken: 1}, s)

	err := adjustSword(&s, StockDelta{Unsold: -1, Sold: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(0), s.Unsold)
	assert.Equal(t, int64(0), s.Sold)
}

func TestAdjustMaterial(t *testing.T) {
	m := MaterialStock{MaterialID: 7, Unsold: 3}
	require.NoError(t, adjustMaterial(&m, StockDelta{Unsold: -2, Sold: 2}))
	assert.Equal(t, int64(1), m.Unsold)
	assert.Equal(t, int64(2), m.Sold)

	require.ErrorIs(t, adjustMaterial(&m, StockDelta{Unsold: -2}), ErrInsufficientMat)
	require.ErrorIs(t, adjustMaterial(&m, StockDelta{Broken: 1}), ErrInvalidInput)
}

func TestMulPrice(t *testing.T) {
	got, err := mulPrice(25, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)

	_, err = mulPrice(25, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = mulPrice(math.MaxInt64/2, 3)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveDropAlwaysSelectsAnEntry(t *testing.T) {
	table := []catalog.DropEntry{
		{MaterialID: 1, Percentage: 12.5, MinQuantity: 1, MaxQuantity: 1},
		{MaterialID: 2, Percentage: 37.5, MinQuantity: 1, MaxQuantity: 2},
		{MaterialID: 3, Percentage: 50, MinQuantity: 2, MaxQuantity: 4},
	}
	defined := map[int64]bool{1: true, 2: true, 3: true}
	for draw := 0.0; draw <= 100.0; draw += 0.25 {
		e, err := resolveDrop(table, draw)
		require.NoError(t, err)
		require.True(t, defined[e.MaterialID], "draw %.2f selected undefined material %d", draw, e.MaterialID)
	}

	tests := []struct {
		draw float64
		want int64
	}{
		{0, 1},
		{12.5, 1},
		{12.6, 2},
		{50, 2},
		{50.01, 3},
		{100, 3},
	}
	for _, tc := range tests {
		e, err := resolveDrop(table, tc.draw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, e.MaterialID, "draw %.2f", tc.draw)
	}
}

func TestResolveDropFallsBackToFirstEntry(t *testing.T) {
	table := []catalog.DropEntry{{MaterialID: 9, Percentage: 33.3}, {MaterialID: 4, Percentage: 66.6}}
	e, err := resolveDrop(table, 99.95)
	require.NoError(t, err)
	assert.Equal(t, int64(9), e.MaterialID)

	_, err = resolveDrop(nil, 10)
	require.ErrorIs(t, err, ErrNoDropTable)
}

func TestDropQuantityStaysInRange(t *testing.T) {
	s := &Service{rand: newLockedRand()}
	for i := 0; i < 200; i++ {
		q, err := s.dropQuantity(catalog.DropEntry{MaterialID: 1, Percentage: 50, MinQuantity: 2, MaxQuantity: 4})
		require.NoError(t, err)
		assert.True(t, q >= 2 && q <= 4, "quantity %d", q)
	}
}

func TestDropQuantityRejectsBadEntries(t *testing.T) {
	s := &Service{rand: newLockedRand()}
	tests := []catalog.DropEntry{
		{MaterialID: 1, Percentage: 10, MinQuantity: 0, MaxQuantity: math.MaxInt64},
		{MaterialID: 1, Percentage: 10, MinQuantity: 1, MaxQuantity: math.MaxInt64},
		{MaterialID: 1, Percentage: 10, MinQuantity: 5, MaxQuantity: 2},
		{MaterialID: 1, Percentage: 10, MinQuantity: -3, MaxQuantity: 2},
		{MaterialID: 1, Percentage: 0, MinQuantity: 1, MaxQuantity: 1},
	}
	for _, e := range tests {
		require.NotPanics(t, func() {
			_, err := s.dropQuantity(e)
			require.ErrorIs(t, err, catalog.ErrInvalid, "entry %+v", e)
			assert.Equal(t, KindFatal, KindOf(err))
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("%w: tier", ErrInvalidInput), KindValidation},
		{ErrInsufficientFunds, KindPrecondition},
		{fmt.Errorf("wrap: %w", ErrGiftAlreadyClaimed), KindPrecondition},
		{ErrSessionNotFound, KindNotFound},
		{ErrCodeGenerationExhausted, KindConflict},
		{fmt.Errorf("%w: %w", ErrCodeGenerationExhausted, ErrVoucherCodeTaken), KindConflict},
		{ErrNoDropTable, KindFatal},
		{catalog.ErrUnsupportedReward, KindFatal},
		{fmt.Errorf("tier 3: %w", catalog.ErrInvalid), KindFatal},
		{fmt.Errorf("%w: %w", ErrInvalidInput, catalog.ErrMalformedReward), KindValidation},
		{fmt.Errorf("boom"), KindInternal},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, KindOf(tc.err), "error %v", tc.err)
	}
}

func TestRollDailyCounters(t *testing.T) {
	day := utcDay(mustTime(t, "2026-05-02T23:59:00Z"))
	acct := Account{DailyGoldAds: 3, DailyShieldAds: 1, TotalAdsViewed: 9, CountersDay: day}
	assert.False(t, acct.rollDailyCounters(day))
	assert.Equal(t, int64(3), acct.DailyGoldAds)

	next := utcDay(mustTime(t, "2026-05-03T00:00:01Z"))
	assert.True(t, acct.rollDailyCounters(next))
	assert.Equal(t, int64(0), acct.DailyGoldAds)
	assert.Equal(t, int64(0), acct.DailyShieldAds)
	assert.Equal(t, int64(9), acct.TotalAdsViewed)
	assert.Equal(t, next, acct.CountersDay)
}

func TestGenerateVoucherCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := generateVoucherCode()
		require.NoError(t, err)
		require.Len(t, code, voucherCodeLength)
		require.False(t, seen[code], "duplicate code %q", code)
		seen[code] = true
	}
}

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	return v
}
