package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads reference data from the catalog schema.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) SwordLevel(ctx context.Context, tier int) (SwordLevel, error) {
	var l SwordLevel
	err := p.db.QueryRow(ctx, `
		SELECT tier, name, buying_price, purchasable, selling_price, upgrade_cost, success_rate, synthesize_cost
		FROM catalog.sword_levels
		WHERE tier = $1
	`, tier).Scan(&l.Tier, &l.Name, &l.BuyingPrice, &l.Purchasable, &l.SellingPrice, &l.UpgradeCost, &l.SuccessRate, &l.SynthesizeCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return l, fmt.Errorf("%w: sword tier %d", ErrNotFound, tier)
		}
		return l, err
	}
	if l.Recipe, err = p.recipe(ctx, tier); err != nil {
		return l, err
	}
	if l.DropTable, err = p.dropTable(ctx, tier); err != nil {
		return l, err
	}
	if err := ValidateSwordLevel(l); err != nil {
		return l, err
	}
	return l, nil
}

func (p *Postgres) SwordLevels(ctx context.Context) ([]SwordLevel, error) {
	rows, err := p.db.Query(ctx, `SELECT tier FROM catalog.sword_levels ORDER BY tier`)
	if err != nil {
		return nil, err
	}
	tiers, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	out := make([]SwordLevel, 0, len(tiers))
	for _, tier := range tiers {
		l, err := p.SwordLevel(ctx, tier)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (p *Postgres) recipe(ctx context.Context, tier int) ([]RecipeItem, error) {
	rows, err := p.db.Query(ctx, `
		SELECT material_id, quantity
		FROM catalog.sword_recipes
		WHERE tier = $1
		ORDER BY material_id
	`, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecipeItem
	for rows.Next() {
		var it RecipeItem
		if err := rows.Scan(&it.MaterialID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) dropTable(ctx context.Context, tier int) ([]DropEntry, error) {
	rows, err := p.db.Query(ctx, `
		SELECT material_id, percentage, min_quantity, max_quantity
		FROM catalog.drop_entries
		WHERE tier = $1
		ORDER BY position
	`, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DropEntry
	for rows.Next() {
		var d DropEntry
		if err := rows.Scan(&d.MaterialID, &d.Percentage, &d.MinQuantity, &d.MaxQuantity); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) Material(ctx context.Context, id int64) (Material, error) {
	var m Material
	err := p.db.QueryRow(ctx, `
		SELECT id, name, buying_price, selling_price, purchasable
		FROM catalog.materials
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.BuyingPrice, &m.SellingPrice, &m.Purchasable)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	if err != nil {
		return m, err
	}
	return m, ValidateMaterial(m)
}

func (p *Postgres) Materials(ctx context.Context) ([]Material, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, name, buying_price, selling_price, purchasable
		FROM catalog.materials
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Name, &m.BuyingPrice, &m.SellingPrice, &m.Purchasable); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := p.db.QueryRow(ctx, `
		SELECT starter_gold, starter_shields, min_voucher_gold, max_voucher_gold, shield_price, max_shield_hold,
		       max_daily_gold_ads, max_daily_shield_ads, max_daily_old_sword_ads,
		       ad_gold_reward, ad_shield_reward, ad_sword_tier, ad_sword_quantity
		FROM catalog.settings
		WHERE id = 1
	`).Scan(&s.StarterGold, &s.StarterShields, &s.MinVoucherGold, &s.MaxVoucherGold, &s.ShieldPrice, &s.MaxShieldHold,
		&s.MaxDailyGoldAds, &s.MaxDailyShieldAds, &s.MaxDailyOldSwordAds,
		&s.AdGoldReward, &s.AdShieldReward, &s.AdSwordTier, &s.AdSwordQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, fmt.Errorf("%w: settings", ErrNotFound)
	}
	if err != nil {
		return s, err
	}
	return s, ValidateSettings(s)
}

func (p *Postgres) DailyMission(ctx context.Context, id string) (DailyMission, error) {
	row := p.db.QueryRow(ctx, `
		SELECT id, title, condition, reward, active
		FROM catalog.daily_missions
		WHERE id = $1
	`, id)
	m, err := scanDailyMission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, fmt.Errorf("%w: daily mission %s", ErrNotFound, id)
	}
	return m, err
}

func (p *Postgres) DailyMissions(ctx context.Context) ([]DailyMission, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, title, condition, reward, active
		FROM catalog.daily_missions
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyMission
	for rows.Next() {
		m, err := scanDailyMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) OneTimeMission(ctx context.Context, id string) (OneTimeMission, error) {
	row := p.db.QueryRow(ctx, `
		SELECT id, title, conditions, target_value, reward, active, start_at, expires_at
		FROM catalog.one_time_missions
		WHERE id = $1
	`, id)
	m, err := scanOneTimeMission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, fmt.Errorf("%w: mission %s", ErrNotFound, id)
	}
	return m, err
}

func (p *Postgres) OneTimeMissions(ctx context.Context) ([]OneTimeMission, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, title, conditions, target_value, reward, active, start_at, expires_at
		FROM catalog.one_time_missions
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OneTimeMission
	for rows.Next() {
		m, err := scanOneTimeMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanDailyMission(row pgx.Row) (DailyMission, error) {
	var m DailyMission
	var condRaw, rewardRaw []byte
	if err := row.Scan(&m.ID, &m.Title, &condRaw, &rewardRaw, &m.Active); err != nil {
		return m, err
	}
	var spec ConditionSpec
	if err := json.Unmarshal(condRaw, &spec); err != nil {
		return m, fmt.Errorf("daily mission %s condition: %w", m.ID, err)
	}
	cond, err := spec.DailyCondition()
	if err != nil {
		return m, fmt.Errorf("daily mission %s: %w", m.ID, err)
	}
	m.Condition = cond
	if m.Reward, err = UnmarshalReward(rewardRaw); err != nil {
		return m, fmt.Errorf("daily mission %s: %w", m.ID, err)
	}
	return m, nil
}

func scanOneTimeMission(row pgx.Row) (OneTimeMission, error) {
	var m OneTimeMission
	var condRaw, rewardRaw []byte
	if err := row.Scan(&m.ID, &m.Title, &condRaw, &m.TargetValue, &rewardRaw, &m.Active, &m.StartAt, &m.ExpiresAt); err != nil {
		return m, err
	}
	var err error
	if m.Conditions, err = UnmarshalConditions(condRaw); err != nil {
		return m, fmt.Errorf("mission %s: %w", m.ID, err)
	}
	if m.Reward, err = UnmarshalReward(rewardRaw); err != nil {
		return m, fmt.Errorf("mission %s: %w", m.ID, err)
	}
	m.StartAt = m.StartAt.UTC()
	m.ExpiresAt = m.ExpiresAt.UTC()
	return m, nil
}
