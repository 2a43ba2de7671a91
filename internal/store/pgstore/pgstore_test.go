package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swordsmith/internal/catalog"
	"swordsmith/internal/db"
	"swordsmith/internal/game"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, isSerializationError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isSerializationError(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, isSerializationError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isSerializationError(game.ErrInsufficientFunds))

	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(nil))
}

// testPool connects to SWORDSMITH_TEST_DATABASE_URL, migrates it and seeds a
// small catalog. The database is assumed to be disposable.
func testPool(t *testing.T) (*pgxpool.Pool, catalog.Catalog) {
	t.Helper()
	url := os.Getenv("SWORDSMITH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SWORDSMITH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, url, db.DefaultPoolOptions)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool, nil)
	require.NoError(t, err)

	cat, err := catalog.NewStatic(
		catalog.Settings{
			StarterGold: 1000, MinVoucherGold: 10, MaxVoucherGold: 1000, ShieldPrice: 20, MaxShieldHold: 5,
			MaxDailyGoldAds: 2, AdGoldReward: 15, AdShieldReward: 1, AdSwordTier: 0, AdSwordQuantity: 1,
		},
		[]catalog.SwordLevel{
			{Tier: 0, Name: "Stick", BuyingPrice: 10, Purchasable: true, SellingPrice: 5, UpgradeCost: 5, SuccessRate: 100},
			{
				Tier: 1, Name: "Blade", SellingPrice: 20, UpgradeCost: 10, SuccessRate: 0, SynthesizeCost: 5,
				Recipe:    []catalog.RecipeItem{{MaterialID: 1, Quantity: 2}},
				DropTable: []catalog.DropEntry{{MaterialID: 1, Percentage: 100, MinQuantity: 1, MaxQuantity: 1}},
			},
			{Tier: 2, Name: "Saber", SellingPrice: 40, UpgradeCost: 20, SuccessRate: 50},
		},
		[]catalog.Material{{ID: 1, Name: "Ore", BuyingPrice: 3, SellingPrice: 1, Purchasable: true}},
		nil, nil,
	)
	require.NoError(t, err)
	require.NoError(t, catalog.Seed(ctx, pool, cat))
	return pool, catalog.NewPostgres(pool)
}

func TestStoreRunsEngineAgainstPostgres(t *testing.T) {
	pool, cat := testPool(t)
	ctx := context.Background()
	svc := game.NewService(New(pool, nil), cat, nil)

	id := uuid.NewString()
	acct, err := svc.EnsureAccount(ctx, id, id+"@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acct.Gold)

	_, err = svc.BuySword(ctx, id, 0, 2)
	require.NoError(t, err)
	_, err = svc.Mount(ctx, id, 0)
	require.NoError(t, err)

	res, err := svc.Upgrade(ctx, id, 0)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Anvil)
	assert.Equal(t, 1, *res.Anvil)

	// tier 1 always fails and breaks the blade, dropping one ore
	res, err = svc.Upgrade(ctx, id, 1)
	require.NoError(t, err)
	assert.True(t, res.Broken)
	assert.Nil(t, res.Anvil)

	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000-20-5-10), d.Account.Gold)
	assert.Nil(t, d.Account.AnvilSwordTier)
	require.Len(t, d.Materials, 1)
	assert.Equal(t, int64(1), d.Materials[0].Unsold)

	log, err := svc.UpgradeLog(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.False(t, log[0].Success)

	require.NoError(t, svc.DeleteAccount(ctx, id))
	_, err = svc.Dashboard(ctx, id)
	require.ErrorIs(t, err, game.ErrAccountNotFound)
}

func TestStoreVoucherLifecycle(t *testing.T) {
	pool, cat := testPool(t)
	ctx := context.Background()
	svc := game.NewService(New(pool, nil), cat, nil)

	creator, redeemer := uuid.NewString(), uuid.NewString()
	for _, id := range []string{creator, redeemer} {
		_, err := svc.EnsureAccount(ctx, id, id+"@example.com")
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_ = svc.DeleteAccount(ctx, creator)
		_ = svc.DeleteAccount(ctx, redeemer)
	})

	v, err := svc.CreateVoucher(ctx, creator, 100)
	require.NoError(t, err)
	_, err = svc.AssignRedeemer(ctx, creator, v.ID, redeemer+"@example.com")
	require.NoError(t, err)

	redeemed, err := svc.RedeemVoucher(ctx, redeemer, v.Code)
	require.NoError(t, err)
	assert.Equal(t, game.VoucherRedeemed, redeemed.Status)

	_, err = svc.CancelVoucher(ctx, creator, v.ID)
	require.ErrorIs(t, err, game.ErrVoucherNotPending)

	d, err := svc.Dashboard(ctx, redeemer)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), d.Account.Gold)
}

func TestStoreSerializesConcurrentPurchases(t *testing.T) {
	pool, cat := testPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc := game.NewService(New(pool, nil), cat, nil)

	id := uuid.NewString()
	_, err := svc.EnsureAccount(ctx, id, id+"@example.com")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.DeleteAccount(context.Background(), id) })

	const buyers = 8
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BuySword(ctx, id, 0, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int64
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, game.ErrTxConflict)
	}
	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	require.Len(t, d.Swords, 1)
	assert.Equal(t, ok, d.Swords[0].Unsold)
	assert.Equal(t, 1000-10*ok, d.Account.Gold)
}

// contend runs fn n times at once and returns how many calls succeeded. Every
// failure must be loser or a conflict that outlived the retry budget.
func contend(t *testing.T, n int, loser error, fn func(i int) error) int {
	t.Helper()
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if !errors.Is(err, game.ErrTxConflict) {
			require.ErrorIs(t, err, loser)
		}
	}
	return ok
}

func newAccounts(t *testing.T, ctx context.Context, svc *game.Service, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
		_, err := svc.EnsureAccount(ctx, ids[i], ids[i]+"@example.com")
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		for _, id := range ids {
			_ = svc.DeleteAccount(context.Background(), id)
		}
	})
	return ids
}

func gold(t *testing.T, ctx context.Context, svc *game.Service, id string) int64 {
	t.Helper()
	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	return d.Account.Gold
}

func TestStoreGiftClaimedOnceUnderContention(t *testing.T) {
	pool, cat := testPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc := game.NewService(New(pool, nil), cat, nil)
	id := newAccounts(t, ctx, svc, 1)[0]

	g, err := svc.IssueGift(ctx, id, catalog.GoldReward{Amount: 75})
	require.NoError(t, err)

	ok := contend(t, 8, game.ErrGiftAlreadyClaimed, func(int) error {
		_, err := svc.ClaimGift(ctx, id, g.ID)
		return err
	})
	assert.LessOrEqual(t, ok, 1)
	assert.Equal(t, 1000+75*int64(ok), gold(t, ctx, svc, id))
}

func TestStoreVoucherRedeemedOnceUnderContention(t *testing.T) {
	pool, cat := testPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc := game.NewService(New(pool, nil), cat, nil)
	ids := newAccounts(t, ctx, svc, 7)
	creator, redeemers := ids[0], ids[1:]

	v, err := svc.CreateVoucher(ctx, creator, 100)
	require.NoError(t, err)

	ok := contend(t, len(redeemers), game.ErrVoucherNotPending, func(i int) error {
		_, err := svc.RedeemVoucher(ctx, redeemers[i], v.Code)
		return err
	})
	assert.LessOrEqual(t, ok, 1)

	var total int64
	for _, id := range redeemers {
		total += gold(t, ctx, svc, id)
	}
	assert.Equal(t, int64(len(redeemers))*1000+100*int64(ok), total)
	assert.Equal(t, int64(900), gold(t, ctx, svc, creator))
}

func TestStoreCancelRacingAssignRefundsOnce(t *testing.T) {
	pool, cat := testPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc := game.NewService(New(pool, nil), cat, nil)
	ids := newAccounts(t, ctx, svc, 2)
	creator, other := ids[0], ids[1]

	v, err := svc.CreateVoucher(ctx, creator, 100)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.CancelVoucher(ctx, creator, v.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.AssignRedeemer(ctx, creator, v.ID, other+"@example.com")
	}()
	wg.Wait()

	if errs[1] != nil && !errors.Is(errs[1], game.ErrTxConflict) {
		require.ErrorIs(t, errs[1], game.ErrVoucherNotPending)
	}
	if errs[0] != nil {
		require.ErrorIs(t, errs[0], game.ErrTxConflict)
		_, err = svc.CancelVoucher(ctx, creator, v.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1000), gold(t, ctx, svc, creator))
	_, err = svc.CancelVoucher(ctx, creator, v.ID)
	require.ErrorIs(t, err, game.ErrVoucherNotPending)
	assert.Equal(t, int64(1000), gold(t, ctx, svc, creator))
}

func TestStoreAdRewardClaimedOnceUnderContention(t *testing.T) {
	pool, cat := testPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc := game.NewService(New(pool, nil), cat, nil)
	id := newAccounts(t, ctx, svc, 1)[0]

	sess, err := svc.StartAdSession(ctx, id, "GOLD")
	require.NoError(t, err)
	_, err = svc.MarkAdSessionVerified(ctx, sess.Nonce, id)
	require.NoError(t, err)

	ok := contend(t, 8, game.ErrSessionNotFound, func(int) error {
		_, err := svc.ClaimAdReward(ctx, id, sess.Nonce)
		return err
	})
	assert.LessOrEqual(t, ok, 1)
	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1000+15*int64(ok), d.Account.Gold)
	assert.Equal(t, int64(ok), d.Account.TotalAdsViewed)
}

func TestStoreReadsDoNotWaitOnAccountLock(t *testing.T) {
	pool, cat := testPool(t)
	ctx := context.Background()
	svc := game.NewService(New(pool, nil), cat, nil)
	id := newAccounts(t, ctx, svc, 1)[0]

	writer, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer writer.Rollback(ctx)
	_, err = writer.Exec(ctx, `SELECT id FROM economy.accounts WHERE id = $1 FOR UPDATE`, id)
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	d, err := svc.Dashboard(readCtx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), d.Account.Gold)
	_, err = svc.ListVouchers(readCtx, id)
	require.NoError(t, err)
}
