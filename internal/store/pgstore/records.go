package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"swordsmith/internal/catalog"
	"swordsmith/internal/game"
)

const voucherColumns = `id, code, creator_id, gold_amount, status, allowed_redeemer_id, redeemed_by, created_at, updated_at`

func scanVoucher(row pgx.Row) (game.Voucher, error) {
	var v game.Voucher
	var status string
	err := row.Scan(&v.ID, &v.Code, &v.CreatorID, &v.GoldAmount, &status, &v.AllowedRedeemerID, &v.RedeemedBy, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, game.ErrVoucherNotFound
	}
	v.Status = game.VoucherStatus(status)
	return v, err
}

func (t *tx) InsertVoucher(ctx context.Context, v game.Voucher) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.vouchers (`+voucherColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, v.ID, v.Code, v.CreatorID, v.GoldAmount, string(v.Status), v.AllowedRedeemerID, v.RedeemedBy, v.CreatedAt, v.UpdatedAt)
	if isUniqueViolation(err) {
		return game.ErrVoucherCodeTaken
	}
	return err
}

func (t *tx) Voucher(ctx context.Context, id string) (game.Voucher, error) {
	return scanVoucher(t.tx.QueryRow(ctx, `
		SELECT `+voucherColumns+` FROM economy.vouchers WHERE id = $1 `+t.lock()+`
	`, id))
}

func (t *tx) VoucherByCode(ctx context.Context, code string) (game.Voucher, error) {
	return scanVoucher(t.tx.QueryRow(ctx, `
		SELECT `+voucherColumns+` FROM economy.vouchers WHERE code = $1 `+t.lock()+`
	`, code))
}

func (t *tx) Vouchers(ctx context.Context, creatorID string) ([]game.Voucher, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+voucherColumns+`
		FROM economy.vouchers
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Voucher, error) {
		return scanVoucher(row)
	})
	if out == nil {
		out = []game.Voucher{}
	}
	return out, err
}

func (t *tx) UpdateVoucherIfPending(ctx context.Context, v game.Voucher) (bool, error) {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE economy.vouchers
		SET status = $2, allowed_redeemer_id = $3, redeemed_by = $4, updated_at = $5
		WHERE id = $1 AND status = 'PENDING'
	`, v.ID, string(v.Status), v.AllowedRedeemerID, v.RedeemedBy, v.UpdatedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

const giftColumns = `id, receiver_id, reward, status, created_at, claimed_at`

func scanGift(row pgx.Row) (game.Gift, error) {
	var g game.Gift
	var raw []byte
	var status string
	err := row.Scan(&g.ID, &g.ReceiverID, &raw, &status, &g.CreatedAt, &g.ClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, game.ErrGiftNotFound
	}
	if err != nil {
		return g, err
	}
	g.Status = game.GiftStatus(status)
	if g.Reward, err = catalog.UnmarshalReward(raw); err != nil {
		return g, fmt.Errorf("gift %s: %w", g.ID, err)
	}
	return g, nil
}

func (t *tx) InsertGift(ctx context.Context, g game.Gift) error {
	raw, err := catalog.MarshalReward(g.Reward)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO economy.gifts (`+giftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.ReceiverID, raw, string(g.Status), g.CreatedAt, g.ClaimedAt)
	return err
}

func (t *tx) Gift(ctx context.Context, id string) (game.Gift, error) {
	return scanGift(t.tx.QueryRow(ctx, `
		SELECT `+giftColumns+` FROM economy.gifts WHERE id = $1 `+t.lock()+`
	`, id))
}

func (t *tx) Gifts(ctx context.Context, receiverID string) ([]game.Gift, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+giftColumns+`
		FROM economy.gifts
		WHERE receiver_id = $1
		ORDER BY created_at DESC
	`, receiverID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Gift, error) {
		return scanGift(row)
	})
	if out == nil {
		out = []game.Gift{}
	}
	return out, err
}

func (t *tx) SetGiftStatusIfPending(ctx context.Context, id string, status game.GiftStatus, at time.Time) (bool, error) {
	var claimedAt *time.Time
	if status == game.GiftClaimed {
		claimedAt = &at
	}
	cmd, err := t.tx.Exec(ctx, `
		UPDATE economy.gifts
		SET status = $2, claimed_at = COALESCE($3, claimed_at)
		WHERE id = $1 AND status = 'PENDING'
	`, id, string(status), claimedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (t *tx) InsertAdSession(ctx context.Context, s game.AdSession) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.ad_sessions (nonce, account_id, reward_type, verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.Nonce, s.AccountID, string(s.RewardType), s.Verified, s.CreatedAt)
	return err
}

func (t *tx) AdSession(ctx context.Context, nonce string) (game.AdSession, error) {
	var s game.AdSession
	var rewardType string
	err := t.tx.QueryRow(ctx, `
		SELECT nonce, account_id, reward_type, verified, created_at
		FROM economy.ad_sessions
		WHERE nonce = $1
		`+t.lock()+`
	`, nonce).Scan(&s.Nonce, &s.AccountID, &rewardType, &s.Verified, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, game.ErrSessionNotFound
	}
	s.RewardType = catalog.AdRewardType(rewardType)
	return s, err
}

func (t *tx) MarkAdSessionVerified(ctx context.Context, nonce string) (bool, error) {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE economy.ad_sessions SET verified = TRUE WHERE nonce = $1 AND NOT verified
	`, nonce)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (t *tx) DeleteAdSession(ctx context.Context, nonce string) (bool, error) {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM economy.ad_sessions WHERE nonce = $1`, nonce)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (t *tx) PurgeAdSessions(ctx context.Context, createdBefore time.Time) (int64, error) {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM economy.ad_sessions WHERE created_at < $1`, createdBefore)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (t *tx) DailyMissionProgress(ctx context.Context, accountID, missionID string) (game.DailyMissionProgress, bool, error) {
	p := game.DailyMissionProgress{AccountID: accountID, MissionID: missionID}
	err := t.tx.QueryRow(ctx, `
		SELECT times_claimed, last_claimed_at
		FROM economy.daily_mission_progress
		WHERE account_id = $1 AND mission_id = $2
		`+t.lock()+`
	`, accountID, missionID).Scan(&p.TimesClaimed, &p.LastClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	p.LastClaimedAt = p.LastClaimedAt.UTC()
	return p, true, nil
}

func (t *tx) PutDailyMissionProgress(ctx context.Context, p game.DailyMissionProgress) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.daily_mission_progress (account_id, mission_id, times_claimed, last_claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, mission_id) DO UPDATE
		SET times_claimed = EXCLUDED.times_claimed, last_claimed_at = EXCLUDED.last_claimed_at
	`, p.AccountID, p.MissionID, p.TimesClaimed, p.LastClaimedAt)
	return err
}

func (t *tx) OneTimeMissionProgress(ctx context.Context, accountID, missionID string) (game.OneTimeMissionProgress, bool, error) {
	p := game.OneTimeMissionProgress{AccountID: accountID, MissionID: missionID}
	err := t.tx.QueryRow(ctx, `
		SELECT claimed_at
		FROM economy.one_time_mission_progress
		WHERE account_id = $1 AND mission_id = $2
	`, accountID, missionID).Scan(&p.ClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, false, nil
	}
	return p, err == nil, err
}

func (t *tx) InsertOneTimeMissionProgress(ctx context.Context, p game.OneTimeMissionProgress) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.one_time_mission_progress (account_id, mission_id, claimed_at)
		VALUES ($1, $2, $3)
	`, p.AccountID, p.MissionID, p.ClaimedAt)
	if isUniqueViolation(err) {
		return game.ErrMissionAlreadyClaimed
	}
	return err
}

func (t *tx) InsertUpgradeHistory(ctx context.Context, h game.UpgradeHistory) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.upgrade_history
			(id, account_id, tier, gold_spent, success, shield_used, drop_material_id, drop_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.AccountID, h.Tier, h.GoldSpent, h.Success, h.ShieldUsed, h.DropMaterialID, h.DropQuantity, h.CreatedAt)
	return err
}

func (t *tx) UpgradeHistory(ctx context.Context, accountID string, limit int) ([]game.UpgradeHistory, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, account_id, tier, gold_spent, success, shield_used, drop_material_id, drop_quantity, created_at
		FROM economy.upgrade_history
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.UpgradeHistory, error) {
		var h game.UpgradeHistory
		err := row.Scan(&h.ID, &h.AccountID, &h.Tier, &h.GoldSpent, &h.Success, &h.ShieldUsed, &h.DropMaterialID, &h.DropQuantity, &h.CreatedAt)
		return h, err
	})
	if out == nil {
		out = []game.UpgradeHistory{}
	}
	return out, err
}

func (t *tx) InsertSynthesisHistory(ctx context.Context, h game.SynthesisHistory) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.synthesis_history (id, account_id, tier, gold_spent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, h.ID, h.AccountID, h.Tier, h.GoldSpent, h.CreatedAt)
	return err
}

func (t *tx) InsertPurchase(ctx context.Context, p game.PurchaseRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO economy.purchases (id, account_id, kind, tier, material_id, quantity, gold_spent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.AccountID, string(p.Kind), p.Tier, p.MaterialID, p.Quantity, p.GoldSpent, p.CreatedAt)
	return err
}

// SumActivity totals purchased quantities for purchase kinds and counts rows
// for upgrades and syntheses, inside [f.From, f.To].
func (t *tx) SumActivity(ctx context.Context, accountID string, f game.ActivityFilter) (int64, error) {
	var (
		query string
		args  = []any{accountID, f.From, f.To}
	)
	switch f.Kind {
	case game.ActivityBuySword:
		query = `SELECT COALESCE(SUM(quantity), 0) FROM economy.purchases
			WHERE account_id = $1 AND created_at BETWEEN $2 AND $3 AND kind = 'SWORD'
			AND ($4::int IS NULL OR tier = $4)`
		args = append(args, f.Tier)
	case game.ActivityBuyMaterial:
		query = `SELECT COALESCE(SUM(quantity), 0) FROM economy.purchases
			WHERE account_id = $1 AND created_at BETWEEN $2 AND $3 AND kind = 'MATERIAL'
			AND ($4::bigint IS NULL OR material_id = $4)`
		args = append(args, f.MaterialID)
	case game.ActivityBuyShield:
		query = `SELECT COALESCE(SUM(quantity), 0) FROM economy.purchases
			WHERE account_id = $1 AND created_at BETWEEN $2 AND $3 AND kind = 'SHIELD'`
	case game.ActivityUpgrade:
		query = `SELECT COUNT(*) FROM economy.upgrade_history
			WHERE account_id = $1 AND created_at BETWEEN $2 AND $3
			AND ($4::int IS NULL OR tier = $4)`
		args = append(args, f.Tier)
	case game.ActivitySynthesis:
		query = `SELECT COUNT(*) FROM economy.synthesis_history
			WHERE account_id = $1 AND created_at BETWEEN $2 AND $3
			AND ($4::int IS NULL OR tier = $4)`
		args = append(args, f.Tier)
	default:
		return 0, fmt.Errorf("unknown activity kind %d", f.Kind)
	}
	var total int64
	err := t.tx.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}
