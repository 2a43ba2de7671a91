package game

import (
	"context"
	"fmt"
)

type TradeResult struct {
	GoldDelta int64          `json:"gold_delta"`
	Gold      int64          `json:"gold"`
	Shields   int64          `json:"shield_count"`
	Sword     *SwordStock    `json:"sword,omitempty"`
	Material  *MaterialStock `json:"material,omitempty"`
	Anvil     *int           `json:"anvil_sword_tier"`
}

func (s *Service) BuySword(ctx context.Context, accountID string, tier int, qty int64) (TradeResult, error) {
	level, err := s.swordLevel(ctx, tier)
	if err != nil {
		return TradeResult{}, err
	}
	if !level.Purchasable {
		return TradeResult{}, fmt.Errorf("%w: sword tier %d", ErrNotPurchasable, tier)
	}
	cost, err := mulPrice(level.BuyingPrice, qty)
	if err != nil {
		return TradeResult{}, err
	}

	var out TradeResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if err := debit(acct, BalanceGold, cost); err != nil {
			return err
		}
		stock, err := tx.SwordStock(ctx, accountID, tier)
		if err != nil {
			return err
		}
		if err := adjustSword(&stock, StockDelta{Unsold: qty}); err != nil {
			return err
		}
		if err := tx.PutSwordStock(ctx, stock); err != nil {
			return err
		}
		if err := tx.InsertPurchase(ctx, PurchaseRecord{
			ID:        newID(),
			AccountID: accountID,
			Kind:      PurchaseSword,
			Tier:      intPtr(tier),
			Quantity:  qty,
			GoldSpent: cost,
			CreatedAt: s.clock(),
		}); err != nil {
			return err
		}
		out = tradeResult(acct, -cost)
		out.Sword = &stock
		return nil
	})
	return out, err
}

// SellSword moves qty unsold units of tier to sold and pays out the selling
// price. Selling the last mounted unit empties the anvil.
func (s *Service) SellSword(ctx context.Context, accountID string, tier int, qty int64) (TradeResult, error) {
	level, err := s.swordLevel(ctx, tier)
	if err != nil {
		return TradeResult{}, err
	}
	payout, err := mulPrice(level.SellingPrice, qty)
	if err != nil {
		return TradeResult{}, err
	}

	var out TradeResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		stock, err := tx.SwordStock(ctx, accountID, tier)
		if err != nil {
			return err
		}
		if err := adjustSword(&stock, StockDelta{Unsold: -qty, Sold: qty}); err != nil {
			return err
		}
		releaseIfEmpty(acct, &stock)
		if err := tx.PutSwordStock(ctx, stock); err != nil {
			return err
		}
		if err := credit(acct, BalanceGold, payout); err != nil {
			return err
		}
		out = tradeResult(acct, payout)
		out.Sword = &stock
		return nil
	})
	return out, err
}

func (s *Service) BuyMaterial(ctx context.Context, accountID string, materialID, qty int64) (TradeResult, error) {
	mat, err := s.material(ctx, materialID)
	if err != nil {
		return TradeResult{}, err
	}
	if !mat.Purchasable {
		return TradeResult{}, fmt.Errorf("%w: material %d", ErrNotPurchasable, materialID)
	}
	cost, err := mulPrice(mat.BuyingPrice, qty)
	if err != nil {
		return TradeResult{}, err
	}

	var out TradeResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if err := debit(acct, BalanceGold, cost); err != nil {
			return err
		}
		stock, err := tx.MaterialStock(ctx, accountID, materialID)
		if err != nil {
			return err
		}
		if err := adjustMaterial(&stock, StockDelta{Unsold: qty}); err != nil {
			return err
		}
		if err := tx.PutMaterialStock(ctx, stock); err != nil {
			return err
		}
		if err := tx.InsertPurchase(ctx, PurchaseRecord{
			ID:         newID(),
			AccountID:  accountID,
			Kind:       PurchaseMaterial,
			MaterialID: int64Ptr(materialID),
			Quantity:   qty,
			GoldSpent:  cost,
			CreatedAt:  s.clock(),
		}); err != nil {
			return err
		}
		out = tradeResult(acct, -cost)
		out.Material = &stock
		return nil
	})
	return out, err
}

func (s *Service) SellMaterial(ctx context.Context, accountID string, materialID, qty int64) (TradeResult, error) {
	mat, err := s.material(ctx, materialID)
	if err != nil {
		return TradeResult{}, err
	}
	payout, err := mulPrice(mat.SellingPrice, qty)
	if err != nil {
		return TradeResult{}, err
	}

	var out TradeResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		stock, err := tx.MaterialStock(ctx, accountID, materialID)
		if err != nil {
			return err
		}
		if err := adjustMaterial(&stock, StockDelta{Unsold: -qty, Sold: qty}); err != nil {
			return err
		}
		if err := tx.PutMaterialStock(ctx, stock); err != nil {
			return err
		}
		if err := credit(acct, BalanceGold, payout); err != nil {
			return err
		}
		out = tradeResult(acct, payout)
		out.Material = &stock
		return nil
	})
	return out, err
}

// BuyShield buys qty shields at the configured price without exceeding the
// holding limit.
func (s *Service) BuyShield(ctx context.Context, accountID string, qty int64) (TradeResult, error) {
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return TradeResult{}, err
	}
	cost, err := mulPrice(settings.ShieldPrice, qty)
	if err != nil {
		return TradeResult{}, err
	}

	var out TradeResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if settings.MaxShieldHold > 0 && acct.ShieldCount+qty > settings.MaxShieldHold {
			return fmt.Errorf("%w: holding %d of %d", ErrShieldHoldExceeded, acct.ShieldCount, settings.MaxShieldHold)
		}
		if err := debit(acct, BalanceGold, cost); err != nil {
			return err
		}
		if err := credit(acct, BalanceShields, qty); err != nil {
			return err
		}
		if err := tx.InsertPurchase(ctx, PurchaseRecord{
			ID:        newID(),
			AccountID: accountID,
			Kind:      PurchaseShield,
			Quantity:  qty,
			GoldSpent: cost,
			CreatedAt: s.clock(),
		}); err != nil {
			return err
		}
		out = tradeResult(acct, -cost)
		return nil
	})
	return out, err
}

func (s *Service) SetShieldProtection(ctx context.Context, accountID string, enabled bool) (Account, error) {
	var out Account
	err := s.withAccount(ctx, accountID, func(_ context.Context, _ Tx, acct *Account) error {
		acct.ShieldProtectionEnabled = enabled
		out = *acct
		return nil
	})
	return out, err
}

func tradeResult(acct *Account, delta int64) TradeResult {
	return TradeResult{
		GoldDelta: delta,
		Gold:      acct.Gold,
		Shields:   acct.ShieldCount,
		Anvil:     acct.AnvilSwordTier,
	}
}
