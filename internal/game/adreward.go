package game

import (
	"context"
	"fmt"
	"strings"

	"swordsmith/internal/catalog"
)

type AdClaim struct {
	RewardType catalog.AdRewardType `json:"reward_type"`
	Grant      Grant                `json:"grant"`
	Gold       int64                `json:"gold"`
	Shields    int64                `json:"shield_count"`
	DailyViews int64                `json:"daily_views"`
	DailyCap   int64                `json:"daily_cap"`
}

func parseAdRewardType(raw string) (catalog.AdRewardType, error) {
	t := catalog.AdRewardType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return t, fmt.Errorf("%w: %q", ErrInvalidAdRewardType, raw)
	}
	return t, nil
}

// adAllowed reports why acct may not watch another ad of type t today.
func adAllowed(acct *Account, settings catalog.Settings, t catalog.AdRewardType) error {
	if acct.DailyAds(t) >= settings.DailyAdCap(t) {
		return fmt.Errorf("%w: %s %d/%d", ErrDailyAdCapReached, t, acct.DailyAds(t), settings.DailyAdCap(t))
	}
	if t == catalog.AdRewardShield && settings.MaxShieldHold > 0 && acct.ShieldCount+settings.AdShieldReward > settings.MaxShieldHold {
		return fmt.Errorf("%w: holding %d of %d", ErrShieldHoldExceeded, acct.ShieldCount, settings.MaxShieldHold)
	}
	return nil
}

// StartAdSession opens a single-use session for one ad view. The returned
// nonce goes into the ad network's server-side callback.
func (s *Service) StartAdSession(ctx context.Context, accountID, rewardType string) (AdSession, error) {
	t, err := parseAdRewardType(rewardType)
	if err != nil {
		return AdSession{}, err
	}
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return AdSession{}, err
	}
	nonce, err := generateNonce()
	if err != nil {
		return AdSession{}, err
	}

	var out AdSession
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if err := adAllowed(acct, settings, t); err != nil {
			return err
		}
		out = AdSession{Nonce: nonce, AccountID: accountID, RewardType: t, CreatedAt: s.clock()}
		return tx.InsertAdSession(ctx, out)
	})
	if err != nil {
		return AdSession{}, err
	}
	return out, nil
}

// MarkAdSessionVerified records the ad network's verified callback for nonce.
// It returns false when the session was already verified.
func (s *Service) MarkAdSessionVerified(ctx context.Context, nonce, userID string) (bool, error) {
	if nonce == "" || userID == "" {
		return false, fmt.Errorf("%w: nonce and user id are required", ErrInvalidInput)
	}
	var flipped bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sess, err := tx.AdSession(ctx, nonce)
		if err != nil {
			return err
		}
		if sess.AccountID != userID {
			return ErrSessionOwnerMismatch
		}
		if sess.expired(s.clock()) {
			return fmt.Errorf("%w: expired", ErrSessionNotFound)
		}
		if sess.Verified {
			return nil
		}
		flipped, err = tx.MarkAdSessionVerified(ctx, nonce)
		return err
	})
	if err != nil {
		return false, err
	}
	if flipped {
		s.log.Info("ad session verified", "account_id", userID)
	}
	return flipped, nil
}

// ClaimAdReward pays out a verified session and deletes it. Deleting the row
// is what makes the nonce single-use.
func (s *Service) ClaimAdReward(ctx context.Context, accountID, nonce string) (AdClaim, error) {
	if nonce == "" {
		return AdClaim{}, fmt.Errorf("%w: nonce is required", ErrInvalidInput)
	}
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return AdClaim{}, err
	}
	if _, err := s.PurgeExpiredAdSessions(ctx); err != nil {
		s.log.Warn("purge ad sessions failed", "error", err)
	}

	var out AdClaim
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		sess, err := tx.AdSession(ctx, nonce)
		if err != nil {
			return err
		}
		if sess.AccountID != accountID {
			return ErrSessionOwnerMismatch
		}
		if sess.expired(s.clock()) {
			return fmt.Errorf("%w: expired", ErrSessionNotFound)
		}
		if !sess.Verified {
			return ErrSessionNotVerified
		}
		if err := adAllowed(acct, settings, sess.RewardType); err != nil {
			return err
		}

		var reward catalog.Reward
		switch sess.RewardType {
		case catalog.AdRewardGold:
			reward = catalog.GoldReward{Amount: settings.AdGoldReward}
		case catalog.AdRewardShield:
			reward = catalog.ShieldReward{Amount: settings.AdShieldReward}
		case catalog.AdRewardOldSword:
			reward = catalog.SwordReward{Tier: settings.AdSwordTier, Quantity: settings.AdSwordQuantity}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidAdRewardType, sess.RewardType)
		}
		if err := s.checkReward(ctx, reward); err != nil {
			return err
		}
		grant, err := applyReward(ctx, tx, acct, reward)
		if err != nil {
			return err
		}
		acct.countAd(sess.RewardType)

		deleted, err := tx.DeleteAdSession(ctx, nonce)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrSessionNotFound
		}
		out = AdClaim{
			RewardType: sess.RewardType,
			Grant:      grant,
			Gold:       acct.Gold,
			Shields:    acct.ShieldCount,
			DailyViews: acct.DailyAds(sess.RewardType),
			DailyCap:   settings.DailyAdCap(sess.RewardType),
		}
		return nil
	})
	if err != nil {
		return AdClaim{}, err
	}
	s.log.Info("ad reward claimed", "account_id", accountID, "reward_type", out.RewardType)
	return out, nil
}

// PurgeExpiredAdSessions deletes sessions older than AdSessionTTL.
func (s *Service) PurgeExpiredAdSessions(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		n, err = tx.PurgeAdSessions(ctx, s.clock().Add(-AdSessionTTL))
		return err
	})
	return n, err
}
