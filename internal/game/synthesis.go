package game

import (
	"context"
	"fmt"
)

type SynthesisResult struct {
	Tier      int        `json:"tier"`
	GoldSpent int64      `json:"gold_spent"`
	Gold      int64      `json:"gold"`
	Sword     SwordStock `json:"sword"`
}

// Synthesize crafts one sword of tier from its recipe. Every material and the
// gold cost are checked before anything is written.
func (s *Service) Synthesize(ctx context.Context, accountID string, tier int) (SynthesisResult, error) {
	level, err := s.swordLevel(ctx, tier)
	if err != nil {
		return SynthesisResult{}, err
	}
	if !level.Synthesizable() {
		return SynthesisResult{}, fmt.Errorf("%w: tier %d", ErrNotSynthesizable, tier)
	}

	var out SynthesisResult
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		if acct.Gold < level.SynthesizeCost {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, acct.Gold, level.SynthesizeCost)
		}
		stocks := make([]MaterialStock, 0, len(level.Recipe))
		for _, item := range level.Recipe {
			stock, err := tx.MaterialStock(ctx, accountID, item.MaterialID)
			if err != nil {
				return err
			}
			if stock.Unsold < item.Quantity {
				return fmt.Errorf("%w: material %d has %d, need %d", ErrInsufficientMat, item.MaterialID, stock.Unsold, item.Quantity)
			}
			stocks = append(stocks, stock)
		}

		if err := debit(acct, BalanceGold, level.SynthesizeCost); err != nil {
			return err
		}
		for i, item := range level.Recipe {
			if err := adjustMaterial(&stocks[i], StockDelta{Unsold: -item.Quantity}); err != nil {
				return err
			}
			if err := tx.PutMaterialStock(ctx, stocks[i]); err != nil {
				return err
			}
		}
		sword, err := tx.SwordStock(ctx, accountID, tier)
		if err != nil {
			return err
		}
		if err := adjustSword(&sword, StockDelta{Unsold: 1}); err != nil {
			return err
		}
		if err := tx.PutSwordStock(ctx, sword); err != nil {
			return err
		}
		if err := tx.InsertSynthesisHistory(ctx, SynthesisHistory{
			ID:        newID(),
			AccountID: accountID,
			Tier:      tier,
			GoldSpent: level.SynthesizeCost,
			CreatedAt: s.clock(),
		}); err != nil {
			return err
		}
		out = SynthesisResult{Tier: tier, GoldSpent: level.SynthesizeCost, Gold: acct.Gold, Sword: sword}
		return nil
	})
	if err != nil {
		return SynthesisResult{}, err
	}
	s.log.Info("sword synthesized", "account_id", accountID, "tier", tier, "gold_spent", out.GoldSpent)
	return out, nil
}
