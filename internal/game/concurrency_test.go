package game_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swordsmith/internal/catalog"
	"swordsmith/internal/game"
)

// race runs fn n times concurrently and returns each call's error by index.
func race(n int, fn func(i int) error) []error {
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
	return errs
}

// requireOneWinner checks exactly one call succeeded and every other call
// failed with loser.
func requireOneWinner(t *testing.T, errs []error, loser error) int {
	t.Helper()
	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "calls %d and %d both succeeded", winner, i)
			winner = i
			continue
		}
		require.ErrorIs(t, err, loser)
	}
	require.NotEqual(t, -1, winner, "no call succeeded")
	return winner
}

func TestConcurrentGiftClaimsPayOnce(t *testing.T) {
	h := newHarness(t)
	h.account("bob")
	g, err := h.svc.IssueGift(h.ctx, "bob", catalog.GoldReward{Amount: 75})
	require.NoError(t, err)

	errs := race(16, func(int) error {
		_, err := h.svc.ClaimGift(h.ctx, "bob", g.ID)
		return err
	})
	requireOneWinner(t, errs, game.ErrGiftAlreadyClaimed)
	assert.Equal(t, int64(575), h.dashboard("bob").Account.Gold)
}

func TestConcurrentRedeemsPayOneRedeemer(t *testing.T) {
	h := newHarness(t)
	h.account("ann")
	v, err := h.svc.CreateVoucher(h.ctx, "ann", 100)
	require.NoError(t, err)

	const redeemers = 8
	ids := make([]string, redeemers)
	for i := range ids {
		ids[i] = fmt.Sprintf("r%d", i)
		h.account(ids[i])
	}

	errs := race(redeemers, func(i int) error {
		_, err := h.svc.RedeemVoucher(h.ctx, ids[i], v.Code)
		return err
	})
	winner := requireOneWinner(t, errs, game.ErrVoucherNotPending)

	var total int64
	for i, id := range ids {
		gold := h.dashboard(id).Account.Gold
		total += gold
		if i == winner {
			assert.Equal(t, int64(600), gold)
		} else {
			assert.Equal(t, int64(500), gold)
		}
	}
	assert.Equal(t, int64(redeemers*500+100), total)
	assert.Equal(t, int64(400), h.dashboard("ann").Account.Gold)
}

func TestAssignRedeemerRacingCancel(t *testing.T) {
	h := newHarness(t)
	h.account("ann")
	h.account("bea")

	for round := 0; round < 20; round++ {
		v, err := h.svc.CreateVoucher(h.ctx, "ann", 50)
		require.NoError(t, err)

		errs := race(2, func(i int) error {
			if i == 0 {
				_, err := h.svc.CancelVoucher(h.ctx, "ann", v.ID)
				return err
			}
			_, err := h.svc.AssignRedeemer(h.ctx, "ann", v.ID, "bea@example.com")
			return err
		})
		require.NoError(t, errs[0], "round %d", round)
		if errs[1] != nil {
			require.ErrorIs(t, errs[1], game.ErrVoucherNotPending, "round %d", round)
		}

		list, err := h.svc.ListVouchers(h.ctx, "ann")
		require.NoError(t, err)
		for _, got := range list {
			if got.ID == v.ID {
				assert.Equal(t, game.VoucherCancelled, got.Status)
			}
		}
		require.Equal(t, int64(500), h.dashboard("ann").Account.Gold, "round %d", round)
	}
	assert.Equal(t, int64(500), h.dashboard("bea").Account.Gold)
}

func TestConcurrentAdClaimsGrantOnce(t *testing.T) {
	h := newHarness(t)
	h.account("pia")
	sess, err := h.svc.StartAdSession(h.ctx, "pia", "GOLD")
	require.NoError(t, err)
	_, err = h.svc.MarkAdSessionVerified(h.ctx, sess.Nonce, "pia")
	require.NoError(t, err)

	errs := race(8, func(int) error {
		_, err := h.svc.ClaimAdReward(h.ctx, "pia", sess.Nonce)
		return err
	})
	requireOneWinner(t, errs, game.ErrSessionNotFound)

	acct := h.dashboard("pia").Account
	assert.Equal(t, int64(540), acct.Gold)
	assert.Equal(t, int64(1), acct.DailyGoldAds)
	assert.Equal(t, int64(1), acct.TotalAdsViewed)
}

func TestConcurrentVoucherCreationNeverOverdraws(t *testing.T) {
	h := newHarness(t)
	h.account("ann")

	errs := race(10, func(int) error {
		_, err := h.svc.CreateVoucher(h.ctx, "ann", 100)
		return err
	})
	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, game.ErrInsufficientFunds)
	}
	assert.Equal(t, 5, created)
	assert.Equal(t, int64(0), h.dashboard("ann").Account.Gold)

	list, err := h.svc.ListVouchers(h.ctx, "ann")
	require.NoError(t, err)
	assert.Len(t, list, 5)
}
