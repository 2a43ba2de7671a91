package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"swordsmith/internal/game"
)

const accountColumns = `
	id, email, gold, trust_points, shield_count, shield_protection_enabled, anvil_sword_tier,
	daily_gold_ads, daily_shield_ads, daily_old_sword_ads, counters_day,
	total_ads_viewed, total_missions_done, is_banned, created_at`

func scanAccount(row pgx.Row) (game.Account, error) {
	var a game.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.Gold, &a.TrustPoints, &a.ShieldCount, &a.ShieldProtectionEnabled, &a.AnvilSwordTier,
		&a.DailyGoldAds, &a.DailyShieldAds, &a.DailyOldSwordAds, &a.CountersDay,
		&a.TotalAdsViewed, &a.TotalMissionsDone, &a.IsBanned, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, game.ErrAccountNotFound
	}
	a.CountersDay = a.CountersDay.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func (t *tx) CreateAccount(ctx context.Context, a game.Account) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.Email, a.Gold, a.TrustPoints, a.ShieldCount, a.ShieldProtectionEnabled, a.AnvilSwordTier,
		a.DailyGoldAds, a.DailyShieldAds, a.DailyOldSwordAds, a.CountersDay,
		a.TotalAdsViewed, a.TotalMissionsDone, a.IsBanned, a.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", game.ErrAccountExists, a.ID)
	}
	return err
}

func (t *tx) Account(ctx context.Context, id string) (game.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM economy.accounts
		WHERE id = $1
		`+t.lock()+`
	`, id))
}

func (t *tx) AccountByEmail(ctx context.Context, email string) (game.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM economy.accounts
		WHERE lower(email) = lower($1) AND email <> ''
	`, email))
}

func (t *tx) UpdateAccount(ctx context.Context, a game.Account) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE economy.accounts
		SET gold = $2, trust_points = $3, shield_count = $4, shield_protection_enabled = $5,
		    anvil_sword_tier = $6, daily_gold_ads = $7, daily_shield_ads = $8, daily_old_sword_ads = $9,
		    counters_day = $10, total_ads_viewed = $11, total_missions_done = $12, is_banned = $13
		WHERE id = $1
	`, a.ID, a.Gold, a.TrustPoints, a.ShieldCount, a.ShieldProtectionEnabled,
		a.AnvilSwordTier, a.DailyGoldAds, a.DailyShieldAds, a.DailyOldSwordAds,
		a.CountersDay, a.TotalAdsViewed, a.TotalMissionsDone, a.IsBanned)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount relies on ON DELETE CASCADE for everything the account owns.
func (t *tx) DeleteAccount(ctx context.Context, id string) error {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM economy.accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrAccountNotFound
	}
	return nil
}

func (t *tx) SwordStock(ctx context.Context, accountID string, tier int) (game.SwordStock, error) {
	s := game.SwordStock{AccountID: accountID, Tier: tier}
	err := t.tx.QueryRow(ctx, `
		SELECT unsold, sold, broken, is_mounted
		FROM economy.sword_stock
		WHERE account_id = $1 AND tier = $2
		`+t.lock()+`
	`, accountID, tier).Scan(&s.Unsold, &s.Sold, &s.Broken, &s.IsMounted)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	return s, err
}

func (t *tx) SwordStocks(ctx context.Context, accountID string) ([]game.SwordStock, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT account_id, tier, unsold, sold, broken, is_mounted
		FROM economy.sword_stock
		WHERE account_id = $1
		ORDER BY tier
	`, accountID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.SwordStock, error) {
		var s game.SwordStock
		err := row.Scan(&s.AccountID, &s.Tier, &s.Unsold, &s.Sold, &s.Broken, &s.IsMounted)
		return s, err
	})
	if out == nil {
		out = []game.SwordStock{}
	}
	return out, err
}

func (t *tx) PutSwordStock(ctx context.Context, s game.SwordStock) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.sword_stock (account_id, tier, unsold, sold, broken, is_mounted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, tier) DO UPDATE
		SET unsold = EXCLUDED.unsold, sold = EXCLUDED.sold, broken = EXCLUDED.broken, is_mounted = EXCLUDED.is_mounted
	`, s.AccountID, s.Tier, s.Unsold, s.Sold, s.Broken, s.IsMounted)
	return err
}

func (t *tx) MaterialStock(ctx context.Context, accountID string, materialID int64) (game.MaterialStock, error) {
	m := game.MaterialStock{AccountID: accountID, MaterialID: materialID}
	err := t.tx.QueryRow(ctx, `
		SELECT unsold, sold
		FROM economy.material_stock
		WHERE account_id = $1 AND material_id = $2
		`+t.lock()+`
	`, accountID, materialID).Scan(&m.Unsold, &m.Sold)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, nil
	}
	return m, err
}

func (t *tx) MaterialStocks(ctx context.Context, accountID string) ([]game.MaterialStock, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT account_id, material_id, unsold, sold
		FROM economy.material_stock
		WHERE account_id = $1
		ORDER BY material_id
	`, accountID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.MaterialStock, error) {
		var m game.MaterialStock
		err := row.Scan(&m.AccountID, &m.MaterialID, &m.Unsold, &m.Sold)
		return m, err
	})
	if out == nil {
		out = []game.MaterialStock{}
	}
	return out, err
}

func (t *tx) PutMaterialStock(ctx context.Context, m game.MaterialStock) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.material_stock (account_id, material_id, unsold, sold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, material_id) DO UPDATE
		SET unsold = EXCLUDED.unsold, sold = EXCLUDED.sold
	`, m.AccountID, m.MaterialID, m.Unsold, m.Sold)
	return err
}
