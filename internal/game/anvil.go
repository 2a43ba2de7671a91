package game

import (
	"context"
	"fmt"
)

type AnvilState struct {
	Tier *int `json:"tier"`
}

func (s *Service) Mount(ctx context.Context, accountID string, tier int) (AnvilState, error) {
	if tier < 0 || tier > MaxSwordTier {
		return AnvilState{}, fmt.Errorf("%w: tier must be between 0 and %d", ErrInvalidInput, MaxSwordTier)
	}
	var out AnvilState
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if acct.AnvilSwordTier != nil && *acct.AnvilSwordTier == tier {
			return fmt.Errorf("%w: tier %d", ErrAlreadyMounted, tier)
		}
		stock, err := tx.SwordStock(ctx, accountID, tier)
		if err != nil {
			return err
		}
		if stock.Unsold < 1 {
			return fmt.Errorf("%w: tier %d", ErrTierNotOwned, tier)
		}
		if err := unmountTx(ctx, tx, acct); err != nil {
			return err
		}
		stock.IsMounted = true
		if err := tx.PutSwordStock(ctx, stock); err != nil {
			return err
		}
		acct.AnvilSwordTier = intPtr(tier)
		out.Tier = acct.AnvilSwordTier
		return nil
	})
	return out, err
}

func (s *Service) Unmount(ctx context.Context, accountID string) (AnvilState, error) {
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if acct.AnvilSwordTier == nil {
			return ErrNothingMounted
		}
		return unmountTx(ctx, tx, acct)
	})
	return AnvilState{}, err
}

// unmountTx clears the mounted row and the account's anvil pointer. It is a
// no-op when nothing is mounted.
func unmountTx(ctx context.Context, tx Tx, acct *Account) error {
	if acct.AnvilSwordTier == nil {
		return nil
	}
	stock, err := tx.SwordStock(ctx, acct.ID, *acct.AnvilSwordTier)
	if err != nil {
		return err
	}
	acct.AnvilSwordTier = nil
	if !stock.IsMounted {
		return nil
	}
	stock.IsMounted = false
	return tx.PutSwordStock(ctx, stock)
}

// releaseIfEmpty unmounts stock when it is mounted and has no unsold units
// left. stock must already carry the caller's pending changes.
func releaseIfEmpty(acct *Account, stock *SwordStock) {
	if stock.Unsold > 0 || !stock.IsMounted {
		return
	}
	stock.IsMounted = false
	if acct.AnvilSwordTier != nil && *acct.AnvilSwordTier == stock.Tier {
		acct.AnvilSwordTier = nil
	}
}
