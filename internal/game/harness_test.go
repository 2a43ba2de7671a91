package game_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swordsmith/internal/catalog"
	"swordsmith/internal/game"
	"swordsmith/internal/store/memstore"
)

// scriptedRandom replays fixed draws and returns zero once exhausted.
type scriptedRandom struct {
	floats []float64
	ints   []int64
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRandom) Int63n(n int64) int64 {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

const (
	ironID  = int64(1)
	emberID = int64(2)
)

var missionStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Static {
	t.Helper()
	settings := catalog.Settings{
		StarterGold:         500,
		StarterShields:      0,
		MinVoucherGold:      10,
		MaxVoucherGold:      10_000,
		ShieldPrice:         30,
		MaxShieldHold:       5,
		MaxDailyGoldAds:     3,
		MaxDailyShieldAds:   2,
		MaxDailyOldSwordAds: 1,
		AdGoldReward:        40,
		AdShieldReward:      1,
		AdSwordTier:         1,
		AdSwordQuantity:     1,
	}
	swords := []catalog.SwordLevel{
		{Tier: 0, Name: "Twig", BuyingPrice: 5, Purchasable: true, SellingPrice: 1, UpgradeCost: 5, SuccessRate: 100},
		{
			Tier: 1, Name: "Rusty Blade", BuyingPrice: 20, Purchasable: true, SellingPrice: 10,
			UpgradeCost: 10, SuccessRate: 50,
			DropTable: []catalog.DropEntry{
				{MaterialID: ironID, Percentage: 60, MinQuantity: 1, MaxQuantity: 3},
				{MaterialID: emberID, Percentage: 40, MinQuantity: 2, MaxQuantity: 2},
			},
		},
		{Tier: 2, Name: "Cracked Saber", SellingPrice: 30, UpgradeCost: 20, SuccessRate: 0},
		{Tier: 3, Name: "Iron Sword", SellingPrice: 60, UpgradeCost: 50, SuccessRate: 100},
		{
			Tier: 4, Name: "Ember Edge", SellingPrice: 120, UpgradeCost: 80, SuccessRate: 40,
			SynthesizeCost: 25,
			Recipe:         []catalog.RecipeItem{{MaterialID: ironID, Quantity: 2}, {MaterialID: emberID, Quantity: 3}},
			DropTable:      []catalog.DropEntry{{MaterialID: emberID, Percentage: 100, MinQuantity: 1, MaxQuantity: 1}},
		},
		{Tier: 5, Name: "Last Light", SellingPrice: 400, UpgradeCost: 100, SuccessRate: 100},
	}
	materials := []catalog.Material{
		{ID: ironID, Name: "Iron", BuyingPrice: 5, SellingPrice: 2, Purchasable: true},
		{ID: emberID, Name: "Ember", BuyingPrice: 8, SellingPrice: 3, Purchasable: false},
	}
	daily := []catalog.DailyMission{
		{
			ID:        "all-gold-ads",
			Title:     "Watch every gold ad",
			Condition: catalog.CompleteAllAdsCondition{RewardType: catalog.AdRewardGold},
			Reward:    catalog.GoldReward{Amount: 100},
			Active:    true,
		},
		{
			ID:        "retired",
			Title:     "Retired mission",
			Condition: catalog.CompleteAllAdsCondition{RewardType: catalog.AdRewardShield},
			Reward:    catalog.GoldReward{Amount: 1},
			Active:    false,
		},
	}
	tierOne := 1
	oneTime := []catalog.OneTimeMission{
		{
			ID:          "first-blades",
			Title:       "Buy two rusty blades",
			Conditions:  []catalog.Condition{catalog.BuySwordCondition{Tier: &tierOne}},
			TargetValue: 2,
			Reward:      catalog.TrustPointsReward{Amount: 5},
			Active:      true,
			StartAt:     missionStart,
			ExpiresAt:   missionStart.AddDate(0, 1, 0),
		},
		{
			ID:          "smith",
			Title:       "Upgrade or synthesize three times",
			Conditions:  []catalog.Condition{catalog.UpgradeSwordCondition{}, catalog.SynthesizeCondition{}},
			TargetValue: 3,
			Reward:      catalog.MaterialReward{MaterialID: emberID, Quantity: 4},
			Active:      true,
			StartAt:     missionStart,
			ExpiresAt:   missionStart.AddDate(0, 1, 0),
		},
	}
	cat, err := catalog.NewStatic(settings, swords, materials, daily, oneTime)
	require.NoError(t, err)
	return cat
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	svc   *game.Service
	store *memstore.Store
	rng   *scriptedRandom
	now   time.Time
}

func newHarness(t *testing.T, opts ...game.Option) *harness {
	t.Helper()
	return newHarnessWithCatalog(t, testCatalog(t), opts...)
}

func newHarnessWithCatalog(t *testing.T, cat catalog.Catalog, opts ...game.Option) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		store: memstore.New(),
		rng:   &scriptedRandom{},
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []game.Option{
		game.WithRandom(h.rng),
		game.WithClock(func() time.Time { return h.now }),
	}
	h.svc = game.NewService(h.store, cat, logger, append(base, opts...)...)
	return h
}

func (h *harness) account(id string) game.Account {
	h.t.Helper()
	acct, err := h.svc.EnsureAccount(h.ctx, id, id+"@example.com")
	require.NoError(h.t, err)
	return acct
}

// edit mutates committed state directly, bypassing the engine's rules.
func (h *harness) edit(fn func(ctx context.Context, tx game.Tx) error) {
	h.t.Helper()
	require.NoError(h.t, h.store.InTx(h.ctx, fn))
}

func (h *harness) setGold(id string, gold int64) {
	h.edit(func(ctx context.Context, tx game.Tx) error {
		a, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		a.Gold = gold
		return tx.UpdateAccount(ctx, a)
	})
}

// giveMountedSword stocks unsold units of tier and puts the tier on the anvil.
func (h *harness) giveMountedSword(id string, tier int, unsold int64) {
	h.edit(func(ctx context.Context, tx game.Tx) error {
		if err := tx.PutSwordStock(ctx, game.SwordStock{AccountID: id, Tier: tier, Unsold: unsold, IsMounted: true}); err != nil {
			return err
		}
		a, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		a.AnvilSwordTier = &tier
		return tx.UpdateAccount(ctx, a)
	})
}

func (h *harness) giveSword(id string, tier int, unsold int64) {
	h.edit(func(ctx context.Context, tx game.Tx) error {
		return tx.PutSwordStock(ctx, game.SwordStock{AccountID: id, Tier: tier, Unsold: unsold})
	})
}

func (h *harness) giveMaterial(id string, materialID, unsold int64) {
	h.edit(func(ctx context.Context, tx game.Tx) error {
		return tx.PutMaterialStock(ctx, game.MaterialStock{AccountID: id, MaterialID: materialID, Unsold: unsold})
	})
}

func (h *harness) dashboard(id string) game.Dashboard {
	h.t.Helper()
	d, err := h.svc.Dashboard(h.ctx, id)
	require.NoError(h.t, err)
	return d
}

func (h *harness) sword(id string, tier int) game.SwordStock {
	h.t.Helper()
	for _, s := range h.dashboard(id).Swords {
		if s.Tier == tier {
			return s
		}
	}
	return game.SwordStock{Tier: tier}
}

func (h *harness) material(id string, materialID int64) game.MaterialStock {
	h.t.Helper()
	for _, m := range h.dashboard(id).Materials {
		if m.MaterialID == materialID {
			return m
		}
	}
	return game.MaterialStock{MaterialID: materialID}
}

// mountedTiers lists every tier flagged mounted for the account.
func (h *harness) mountedTiers(id string) []int {
	h.t.Helper()
	var out []int
	for _, s := range h.dashboard(id).Swords {
		if s.IsMounted {
			out = append(out, s.Tier)
		}
	}
	return out
}

// requireAnvilConsistent checks at most one row is mounted and that it matches
// the account's anvil pointer.
func (h *harness) requireAnvilConsistent(id string) {
	h.t.Helper()
	d := h.dashboard(id)
	mounted := h.mountedTiers(id)
	require.LessOrEqual(h.t, len(mounted), 1, "mounted tiers %v", mounted)
	if len(mounted) == 0 {
		require.Nil(h.t, d.Account.AnvilSwordTier)
		return
	}
	require.NotNil(h.t, d.Account.AnvilSwordTier)
	require.Equal(h.t, mounted[0], *d.Account.AnvilSwordTier)
}

// watchAd runs a full start, verify, claim cycle for one ad.
func (h *harness) watchAd(id string, rewardType catalog.AdRewardType) game.AdClaim {
	h.t.Helper()
	sess, err := h.svc.StartAdSession(h.ctx, id, string(rewardType))
	require.NoError(h.t, err)
	ok, err := h.svc.MarkAdSessionVerified(h.ctx, sess.Nonce, id)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	claim, err := h.svc.ClaimAdReward(h.ctx, id, sess.Nonce)
	require.NoError(h.t, err)
	return claim
}
