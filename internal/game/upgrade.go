package game

import (
	"context"
	"errors"
	"fmt"

	"swordsmith/internal/catalog"
)

type Drop struct {
	MaterialID int64 `json:"material_id"`
	Quantity   int64 `json:"quantity"`
}

type UpgradeResult struct {
	Tier       int   `json:"tier"`
	Success    bool  `json:"success"`
	NewTier    *int  `json:"new_tier,omitempty"`
	ShieldUsed bool  `json:"shield_used"`
	Broken     bool  `json:"broken"`
	GoldSpent  int64 `json:"gold_spent"`
	Gold       int64 `json:"gold"`
	Shields    int64 `json:"shield_count"`
	Drop       *Drop `json:"drop,omitempty"`
	Anvil      *int  `json:"anvil_sword_tier"`
}

// Upgrade spends the tier's upgrade cost on the mounted sword and rolls
// against its success rate. A success swaps the sword for one of the next tier
// and mounts it. A failure either burns one shield when protection is on, or
// breaks the sword and grants a drop from the tier's drop table.
func (s *Service) Upgrade(ctx context.Context, accountID string, tier int) (UpgradeResult, error) {
	if tier >= MaxSwordTier {
		return UpgradeResult{}, fmt.Errorf("%w: tier %d", ErrMaxTierReached, tier)
	}
	level, err := s.swordLevel(ctx, tier)
	if err != nil {
		return UpgradeResult{}, err
	}
	if _, err := s.catalog.SwordLevel(ctx, tier+1); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return UpgradeResult{}, fmt.Errorf("%w: tier %d", ErrNextTierMissing, tier+1)
		}
		return UpgradeResult{}, err
	}

	var out UpgradeResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		out = UpgradeResult{Tier: tier}
		stock, err := tx.SwordStock(ctx, accountID, tier)
		if err != nil {
			return err
		}
		if stock.Unsold < 1 {
			return fmt.Errorf("%w: tier %d", ErrTierNotOwned, tier)
		}
		if !stock.IsMounted || acct.AnvilSwordTier == nil || *acct.AnvilSwordTier != tier {
			return fmt.Errorf("%w: tier %d", ErrNotMounted, tier)
		}
		if acct.ShieldProtectionEnabled && acct.ShieldCount < 1 {
			return ErrShieldRequired
		}
		if err := debit(acct, BalanceGold, level.UpgradeCost); err != nil {
			return err
		}
		out.GoldSpent = level.UpgradeCost

		roll := s.rand.Float64()
		out.Success = level.SuccessRate > 0 && roll <= level.SuccessRate/100

		switch {
		case out.Success:
			if err := adjustSword(&stock, StockDelta{Unsold: -1}); err != nil {
				return err
			}
			stock.IsMounted = false
			if err := tx.PutSwordStock(ctx, stock); err != nil {
				return err
			}
			next, err := tx.SwordStock(ctx, accountID, tier+1)
			if err != nil {
				return err
			}
			if err := adjustSword(&next, StockDelta{Unsold: 1}); err != nil {
				return err
			}
			next.IsMounted = true
			if err := tx.PutSwordStock(ctx, next); err != nil {
				return err
			}
			acct.AnvilSwordTier = intPtr(tier + 1)
			out.NewTier = acct.AnvilSwordTier

		case acct.ShieldProtectionEnabled:
			if err := debit(acct, BalanceShields, 1); err != nil {
				return err
			}
			out.ShieldUsed = true

		default:
			if len(level.DropTable) == 0 {
				return fmt.Errorf("%w: tier %d", ErrNoDropTable, tier)
			}
			if err := adjustSword(&stock, StockDelta{Unsold: -1, Broken: 1}); err != nil {
				return err
			}
			releaseIfEmpty(acct, &stock)
			if err := tx.PutSwordStock(ctx, stock); err != nil {
				return err
			}
			out.Broken = true

			entry, err := resolveDrop(level.DropTable, s.rand.Float64()*100)
			if err != nil {
				return err
			}
			qty, err := s.dropQuantity(entry)
			if err != nil {
				return fmt.Errorf("tier %d: %w", tier, err)
			}
			drop := Drop{MaterialID: entry.MaterialID, Quantity: qty}
			if drop.Quantity > 0 {
				mat, err := tx.MaterialStock(ctx, accountID, drop.MaterialID)
				if err != nil {
					return err
				}
				if err := adjustMaterial(&mat, StockDelta{Unsold: drop.Quantity}); err != nil {
					return err
				}
				if err := tx.PutMaterialStock(ctx, mat); err != nil {
					return err
				}
			}
			out.Drop = &drop
		}

		history := UpgradeHistory{
			ID:         newID(),
			AccountID:  accountID,
			Tier:       tier,
			GoldSpent:  level.UpgradeCost,
			Success:    out.Success,
			ShieldUsed: out.ShieldUsed,
			CreatedAt:  s.clock(),
		}
		if out.Drop != nil {
			history.DropMaterialID = int64Ptr(out.Drop.MaterialID)
			history.DropQuantity = out.Drop.Quantity
		}
		if err := tx.InsertUpgradeHistory(ctx, history); err != nil {
			return err
		}

		out.Gold = acct.Gold
		out.Shields = acct.ShieldCount
		out.Anvil = acct.AnvilSwordTier
		return nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}
	s.log.Info("sword upgrade",
		"account_id", accountID,
		"tier", tier,
		"success", out.Success,
		"shield_used", out.ShieldUsed,
		"gold_spent", out.GoldSpent,
	)
	return out, nil
}

// resolveDrop walks the cumulative percentages and returns the first entry
// whose running total reaches draw (0..100). Rounding gaps fall back to the
// first entry.
func resolveDrop(table []catalog.DropEntry, draw float64) (catalog.DropEntry, error) {
	if len(table) == 0 {
		return catalog.DropEntry{}, ErrNoDropTable
	}
	cumulative := 0.0
	for _, e := range table {
		cumulative += e.Percentage
		if cumulative >= draw {
			return e, nil
		}
	}
	return table[0], nil
}

// dropQuantity draws uniformly from [MinQuantity, MaxQuantity]. An entry that
// slipped past catalog validation aborts the upgrade instead of panicking.
func (s *Service) dropQuantity(e catalog.DropEntry) (int64, error) {
	if err := catalog.ValidateDropEntry(e); err != nil {
		return 0, err
	}
	return e.MinQuantity + s.rand.Int63n(e.MaxQuantity-e.MinQuantity+1), nil
}
