package game_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swordsmith/internal/catalog"
	"swordsmith/internal/game"
)

func TestUpgradeSuccessMountsNextTier(t *testing.T) {
	h := newHarness(t)
	h.account("alice")
	h.setGold("alice", 500)
	h.giveMountedSword("alice", 3, 1)
	h.rng.floats = []float64{0.999}

	res, err := h.svc.Upgrade(h.ctx, "alice", 3)
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.NewTier)
	assert.Equal(t, 4, *res.NewTier)
	assert.Equal(t, int64(450), res.Gold)

	d := h.dashboard("alice")
	assert.Equal(t, int64(450), d.Account.Gold)
	old := h.sword("alice", 3)
	assert.Equal(t, int64(0), old.Unsold)
	assert.False(t, old.IsMounted)
	next := h.sword("alice", 4)
	assert.Equal(t, int64(1), next.Unsold)
	assert.True(t, next.IsMounted)
	h.requireAnvilConsistent("alice")

	log, err := h.svc.UpgradeLog(h.ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.True(t, log[0].Success)
	assert.Equal(t, 3, log[0].Tier)
	assert.Equal(t, int64(50), log[0].GoldSpent)
}

func TestUpgradeFailureBreaksSwordAndGrantsDrop(t *testing.T) {
	h := newHarness(t)
	h.account("bob")
	h.giveMountedSword("bob", 1, 1)
	// roll fails against 50%, drop draw lands in the second entry
	h.rng.floats = []float64{0.9, 0.7}

	res, err := h.svc.Upgrade(h.ctx, "bob", 1)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Broken)
	assert.False(t, res.ShieldUsed)
	require.NotNil(t, res.Drop)
	assert.Equal(t, game.Drop{MaterialID: emberID, Quantity: 2}, *res.Drop)
	assert.Equal(t, int64(490), res.Gold)
	assert.Nil(t, res.Anvil)

	s := h.sword("bob", 1)
	assert.Equal(t, int64(0), s.Unsold)
	assert.Equal(t, int64(1), s.Broken)
	assert.False(t, s.IsMounted)
	assert.Equal(t, int64(2), h.material("bob", emberID).Unsold)
	h.requireAnvilConsistent("bob")

	log, err := h.svc.UpgradeLog(h.ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.False(t, log[0].Success)
	require.NotNil(t, log[0].DropMaterialID)
	assert.Equal(t, emberID, *log[0].DropMaterialID)
	assert.Equal(t, int64(2), log[0].DropQuantity)
}

func TestUpgradeFailureKeepsMountWhenUnitsRemain(t *testing.T) {
	h := newHarness(t)
	h.account("bob")
	h.giveMountedSword("bob", 1, 3)
	h.rng.floats = []float64{0.9, 0.1}
	h.rng.ints = []int64{2}

	res, err := h.svc.Upgrade(h.ctx, "bob", 1)
	require.NoError(t, err)
	require.NotNil(t, res.Drop)
	assert.Equal(t, game.Drop{MaterialID: ironID, Quantity: 3}, *res.Drop)

	s := h.sword("bob", 1)
	assert.Equal(t, int64(2), s.Unsold)
	assert.Equal(t, int64(1), s.Broken)
	assert.True(t, s.IsMounted)
	h.requireAnvilConsistent("bob")
}

func TestUpgradeFailureWithShieldProtection(t *testing.T) {
	h := newHarness(t)
	h.account("cara")
	h.giveMountedSword("cara", 1, 1)
	_, err := h.svc.BuyShield(h.ctx, "cara", 2)
	require.NoError(t, err)
	_, err = h.svc.SetShieldProtection(h.ctx, "cara", true)
	require.NoError(t, err)
	h.rng.floats = []float64{0.9}

	res, err := h.svc.Upgrade(h.ctx, "cara", 1)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.ShieldUsed)
	assert.False(t, res.Broken)
	assert.Nil(t, res.Drop)
	assert.Equal(t, int64(1), res.Shields)
	assert.Equal(t, int64(500-60-10), res.Gold)

	s := h.sword("cara", 1)
	assert.Equal(t, int64(1), s.Unsold)
	assert.Equal(t, int64(0), s.Broken)
	assert.True(t, s.IsMounted)
}

func TestUpgradeSuccessDoesNotConsumeShield(t *testing.T) {
	h := newHarness(t)
	h.account("cara")
	h.giveMountedSword("cara", 3, 1)
	_, err := h.svc.BuyShield(h.ctx, "cara", 1)
	require.NoError(t, err)
	_, err = h.svc.SetShieldProtection(h.ctx, "cara", true)
	require.NoError(t, err)
	h.rng.floats = []float64{0.2}

	res, err := h.svc.Upgrade(h.ctx, "cara", 3)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.ShieldUsed)
	assert.Equal(t, int64(1), res.Shields)
}

func TestUpgradeProtectionWithoutShieldFailsBeforeCharging(t *testing.T) {
	h := newHarness(t)
	h.account("dan")
	h.giveMountedSword("dan", 1, 1)
	_, err := h.svc.SetShieldProtection(h.ctx, "dan", true)
	require.NoError(t, err)

	_, err = h.svc.Upgrade(h.ctx, "dan", 1)
	require.ErrorIs(t, err, game.ErrShieldRequired)
	assert.Equal(t, int64(500), h.dashboard("dan").Account.Gold)
	assert.Equal(t, int64(1), h.sword("dan", 1).Unsold)
}

func TestUpgradePreconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		tier  int
		want  error
	}{
		{
			name: "tier not owned",
			tier: 1,
			want: game.ErrTierNotOwned,
		},
		{
			name:  "owned but not mounted",
			setup: func(h *harness) { h.giveSword("erin", 1, 2) },
			tier:  1,
			want:  game.ErrNotMounted,
		},
		{
			name:  "another tier mounted",
			setup: func(h *harness) { h.giveSword("erin", 1, 1); h.giveMountedSword("erin", 3, 1) },
			tier:  1,
			want:  game.ErrNotMounted,
		},
		{
			name: "max tier",
			tier: game.MaxSwordTier,
			want: game.ErrMaxTierReached,
		},
		{
			name:  "insufficient gold",
			setup: func(h *harness) { h.giveMountedSword("erin", 3, 1); h.setGold("erin", 49) },
			tier:  3,
			want:  game.ErrInsufficientFunds,
		},
		{
			name:  "next tier undefined",
			setup: func(h *harness) { h.giveMountedSword("erin", 5, 1) },
			tier:  5,
			want:  game.ErrNextTierMissing,
		},
		{
			name:  "failure without drop table",
			setup: func(h *harness) { h.giveMountedSword("erin", 2, 1) },
			tier:  2,
			want:  game.ErrNoDropTable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.account("erin")
			if tc.setup != nil {
				tc.setup(h)
			}
			h.rng.floats = []float64{0.5}
			before := h.dashboard("erin")

			_, err := h.svc.Upgrade(h.ctx, "erin", tc.tier)
			require.ErrorIs(t, err, tc.want)

			after := h.dashboard("erin")
			assert.Equal(t, before, after)
			log, err := h.svc.UpgradeLog(h.ctx, "erin", 10)
			require.NoError(t, err)
			assert.Empty(t, log)
		})
	}
}

func TestUpgradeChargesCostOncePerCall(t *testing.T) {
	h := newHarness(t)
	h.account("fay")
	h.giveMountedSword("fay", 1, 4)
	h.rng.floats = []float64{0.9, 0.1, 0.9, 0.1, 0.9, 0.1}

	for i := 1; i <= 3; i++ {
		res, err := h.svc.Upgrade(h.ctx, "fay", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(10), res.GoldSpent)
		assert.Equal(t, int64(500-10*i), res.Gold)
	}
	s := h.sword("fay", 1)
	assert.Equal(t, int64(4), s.Unsold+s.Sold+s.Broken)
	assert.Equal(t, int64(3), s.Broken)
}

// corruptDrops serves tier 1 with a drop entry no validated catalog would hold,
// standing in for reference data edited behind the engine's back.
type corruptDrops struct {
	catalog.Catalog
}

func (c corruptDrops) SwordLevel(ctx context.Context, tier int) (catalog.SwordLevel, error) {
	l, err := c.Catalog.SwordLevel(ctx, tier)
	if err == nil && tier == 1 {
		l.DropTable = []catalog.DropEntry{{MaterialID: ironID, Percentage: 100, MinQuantity: 0, MaxQuantity: math.MaxInt64}}
	}
	return l, err
}

func TestUpgradeWithCorruptDropEntryFailsWithoutPanicking(t *testing.T) {
	h := newHarnessWithCatalog(t, corruptDrops{Catalog: testCatalog(t)})
	h.account("gil")
	h.giveMountedSword("gil", 1, 1)
	h.rng.floats = []float64{0.9, 0.1}
	before := h.dashboard("gil")

	var err error
	require.NotPanics(t, func() {
		_, err = h.svc.Upgrade(h.ctx, "gil", 1)
	})
	require.ErrorIs(t, err, catalog.ErrInvalid)
	assert.Equal(t, game.KindFatal, game.KindOf(err))
	assert.Equal(t, before, h.dashboard("gil"))
}
