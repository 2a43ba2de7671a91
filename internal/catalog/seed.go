package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seed replaces the contents of the catalog schema with src in one transaction.
func Seed(ctx context.Context, db *pgxpool.Pool, src Catalog) error {
	settings, err := src.Settings(ctx)
	if err != nil {
		return err
	}
	swords, err := src.SwordLevels(ctx)
	if err != nil {
		return err
	}
	materials, err := src.Materials(ctx)
	if err != nil {
		return err
	}
	daily, err := src.DailyMissions(ctx)
	if err != nil {
		return err
	}
	oneTime, err := src.OneTimeMissions(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"drop_entries", "sword_recipes", "sword_levels", "materials", "daily_missions", "one_time_missions", "settings"} {
		if _, err := tx.Exec(ctx, "DELETE FROM catalog."+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO catalog.settings
		    (id, starter_gold, starter_shields, min_voucher_gold, max_voucher_gold, shield_price, max_shield_hold,
		     max_daily_gold_ads, max_daily_shield_ads, max_daily_old_sword_ads,
		     ad_gold_reward, ad_shield_reward, ad_sword_tier, ad_sword_quantity)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, settings.StarterGold, settings.StarterShields, settings.MinVoucherGold, settings.MaxVoucherGold,
		settings.ShieldPrice, settings.MaxShieldHold, settings.MaxDailyGoldAds, settings.MaxDailyShieldAds,
		settings.MaxDailyOldSwordAds, settings.AdGoldReward, settings.AdShieldReward, settings.AdSwordTier,
		settings.AdSwordQuantity); err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}

	for _, m := range materials {
		if _, err := tx.Exec(ctx, `
			INSERT INTO catalog.materials (id, name, buying_price, selling_price, purchasable)
			VALUES ($1, $2, $3, $4, $5)
		`, m.ID, m.Name, m.BuyingPrice, m.SellingPrice, m.Purchasable); err != nil {
			return fmt.Errorf("insert material %d: %w", m.ID, err)
		}
	}

	for _, l := range swords {
		if _, err := tx.Exec(ctx, `
			INSERT INTO catalog.sword_levels
			    (tier, name, buying_price, purchasable, selling_price, upgrade_cost, success_rate, synthesize_cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, l.Tier, l.Name, l.BuyingPrice, l.Purchasable, l.SellingPrice, l.UpgradeCost, l.SuccessRate, l.SynthesizeCost); err != nil {
			return fmt.Errorf("insert sword tier %d: %w", l.Tier, err)
		}
		for _, it := range l.Recipe {
			if _, err := tx.Exec(ctx, `
				INSERT INTO catalog.sword_recipes (tier, material_id, quantity)
				VALUES ($1, $2, $3)
			`, l.Tier, it.MaterialID, it.Quantity); err != nil {
				return fmt.Errorf("insert recipe tier %d: %w", l.Tier, err)
			}
		}
		for i, d := range l.DropTable {
			if _, err := tx.Exec(ctx, `
				INSERT INTO catalog.drop_entries (tier, position, material_id, percentage, min_quantity, max_quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, l.Tier, i, d.MaterialID, d.Percentage, d.MinQuantity, d.MaxQuantity); err != nil {
				return fmt.Errorf("insert drop tier %d: %w", l.Tier, err)
			}
		}
	}

	for _, m := range daily {
		cond, err := json.Marshal(m.Condition.Spec())
		if err != nil {
			return err
		}
		reward, err := MarshalReward(m.Reward)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO catalog.daily_missions (id, title, condition, reward, active)
			VALUES ($1, $2, $3::jsonb, $4::jsonb, $5)
		`, m.ID, m.Title, string(cond), string(reward), m.Active); err != nil {
			return fmt.Errorf("insert daily mission %s: %w", m.ID, err)
		}
	}

	for _, m := range oneTime {
		conds, err := MarshalConditions(m.Conditions)
		if err != nil {
			return err
		}
		reward, err := MarshalReward(m.Reward)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO catalog.one_time_missions (id, title, conditions, target_value, reward, active, start_at, expires_at)
			VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, $6, $7, $8)
		`, m.ID, m.Title, string(conds), m.TargetValue, string(reward), m.Active, m.StartAt, m.ExpiresAt); err != nil {
			return fmt.Errorf("insert mission %s: %w", m.ID, err)
		}
	}

	return tx.Commit(ctx)
}
