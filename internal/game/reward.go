package game

import (
	"context"
	"errors"
	"fmt"

	"swordsmith/internal/catalog"
)

// Grant describes what a reward put into an account.
type Grant struct {
	Type       string `json:"type"`
	Amount     int64  `json:"amount,omitempty"`
	MaterialID int64  `json:"material_id,omitempty"`
	Tier       *int   `json:"tier,omitempty"`
	Quantity   int64  `json:"quantity,omitempty"`
}

// checkReward validates a reward and that the catalog entries it points at
// exist. Call it before mutating anything.
func (s *Service) checkReward(ctx context.Context, r catalog.Reward) error {
	if r == nil {
		return fmt.Errorf("%w: nil reward", catalog.ErrMalformedReward)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	switch r := r.(type) {
	case catalog.GoldReward, catalog.TrustPointsReward, catalog.ShieldReward:
		return nil
	case catalog.MaterialReward:
		if _, err := s.catalog.Material(ctx, r.MaterialID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("%w: material %d", ErrRewardMissing, r.MaterialID)
			}
			return err
		}
		return nil
	case catalog.SwordReward:
		if _, err := s.catalog.SwordLevel(ctx, r.Tier); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("%w: sword tier %d", ErrRewardMissing, r.Tier)
			}
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", catalog.ErrUnsupportedReward, r)
	}
}

// applyReward credits r to acct inside tx. The reward must already have passed
// checkReward.
func applyReward(ctx context.Context, tx Tx, acct *Account, r catalog.Reward) (Grant, error) {
	spec := r.Spec()
	grant := Grant{Type: spec.Type}
	switch r := r.(type) {
	case catalog.GoldReward:
		grant.Amount = r.Amount
		return grant, credit(acct, BalanceGold, r.Amount)
	case catalog.TrustPointsReward:
		grant.Amount = r.Amount
		return grant, credit(acct, BalanceTrustPoints, r.Amount)
	case catalog.ShieldReward:
		grant.Amount = r.Amount
		return grant, credit(acct, BalanceShields, r.Amount)
	case catalog.MaterialReward:
		stock, err := tx.MaterialStock(ctx, acct.ID, r.MaterialID)
		if err != nil {
			return grant, err
		}
		if err := adjustMaterial(&stock, StockDelta{Unsold: r.Quantity}); err != nil {
			return grant, err
		}
		grant.MaterialID, grant.Quantity = r.MaterialID, r.Quantity
		return grant, tx.PutMaterialStock(ctx, stock)
	case catalog.SwordReward:
		stock, err := tx.SwordStock(ctx, acct.ID, r.Tier)
		if err != nil {
			return grant, err
		}
		if err := adjustSword(&stock, StockDelta{Unsold: r.Quantity}); err != nil {
			return grant, err
		}
		grant.Tier, grant.Quantity = intPtr(r.Tier), r.Quantity
		return grant, tx.PutSwordStock(ctx, stock)
	default:
		return grant, fmt.Errorf("%w: %T", catalog.ErrUnsupportedReward, r)
	}
}
