package game

import (
	"context"
	"fmt"

	"swordsmith/internal/catalog"
)

type GiftClaim struct {
	Gift  Gift  `json:"gift"`
	Grant Grant `json:"grant"`
	Gold  int64 `json:"gold"`
}

// IssueGift queues a reward for receiverID. Operators use it; players cannot.
func (s *Service) IssueGift(ctx context.Context, receiverID string, reward catalog.Reward) (Gift, error) {
	if receiverID == "" {
		return Gift{}, fmt.Errorf("%w: receiver is required", ErrInvalidInput)
	}
	if err := s.checkReward(ctx, reward); err != nil {
		return Gift{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	g := Gift{
		ID:         newID(),
		ReceiverID: receiverID,
		Reward:     reward,
		Status:     GiftPending,
		CreatedAt:  s.clock(),
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Account(ctx, receiverID); err != nil {
			return err
		}
		return tx.InsertGift(ctx, g)
	})
	if err != nil {
		return Gift{}, err
	}
	s.log.Info("gift issued", "account_id", receiverID, "gift_id", g.ID, "type", reward.Spec().Type)
	return g, nil
}

// CancelGift withdraws a pending gift.
func (s *Service) CancelGift(ctx context.Context, giftID string) error {
	if giftID == "" {
		return fmt.Errorf("%w: gift id is required", ErrInvalidInput)
	}
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		g, err := tx.Gift(ctx, giftID)
		if err != nil {
			return err
		}
		if err := giftClaimable(g); err != nil {
			return err
		}
		ok, err := tx.SetGiftStatusIfPending(ctx, giftID, GiftCancelled, s.clock())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: gift %s", ErrStatusChanged, giftID)
		}
		return nil
	})
}

func giftClaimable(g Gift) error {
	switch g.Status {
	case GiftPending:
		return nil
	case GiftClaimed:
		return ErrGiftAlreadyClaimed
	case GiftCancelled:
		return ErrGiftCancelled
	default:
		return fmt.Errorf("%w: gift status %q", ErrStatusChanged, g.Status)
	}
}

// ClaimGift applies a pending gift to its receiver and marks it claimed in the
// same transaction, so a repeated claim always sees a terminal status.
func (s *Service) ClaimGift(ctx context.Context, accountID, giftID string) (GiftClaim, error) {
	if giftID == "" {
		return GiftClaim{}, fmt.Errorf("%w: gift id is required", ErrInvalidInput)
	}
	var out GiftClaim
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		g, err := tx.Gift(ctx, giftID)
		if err != nil {
			return err
		}
		if g.ReceiverID != accountID {
			return ErrGiftNotReceiver
		}
		if err := giftClaimable(g); err != nil {
			return err
		}
		if err := s.checkReward(ctx, g.Reward); err != nil {
			return err
		}
		grant, err := applyReward(ctx, tx, acct, g.Reward)
		if err != nil {
			return err
		}
		now := s.clock()
		ok, err := tx.SetGiftStatusIfPending(ctx, giftID, GiftClaimed, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGiftAlreadyClaimed
		}
		g.Status = GiftClaimed
		g.ClaimedAt = &now
		out = GiftClaim{Gift: g, Grant: grant, Gold: acct.Gold}
		return nil
	})
	if err != nil {
		return GiftClaim{}, err
	}
	s.log.Info("gift claimed", "account_id", accountID, "gift_id", giftID, "type", out.Grant.Type)
	return out, nil
}

func (s *Service) ListGifts(ctx context.Context, accountID string) ([]Gift, error) {
	var out []Gift
	err := s.viewAccount(ctx, accountID, func(ctx context.Context, tx Tx, _ Account) error {
		var err error
		out, err = tx.Gifts(ctx, accountID)
		return err
	})
	return out, err
}
