// Package catalog holds the read-only reference data the economy engine consumes:
// sword tiers, materials, drop tables, synthesis recipes, global settings and
// mission definitions. Admin editing of this data lives outside this module; the
// engine only reads it.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog entry not found")

type Catalog interface {
	SwordLevel(ctx context.Context, tier int) (SwordLevel, error)
	SwordLevels(ctx context.Context) ([]SwordLevel, error)
	Material(ctx context.Context, id int64) (Material, error)
	Materials(ctx context.Context) ([]Material, error)
	Settings(ctx context.Context) (Settings, error)
	DailyMission(ctx context.Context, id string) (DailyMission, error)
	DailyMissions(ctx context.Context) ([]DailyMission, error)
	OneTimeMission(ctx context.Context, id string) (OneTimeMission, error)
	OneTimeMissions(ctx context.Context) ([]OneTimeMission, error)
}

type SwordLevel struct {
	Tier           int          `json:"tier"`
	Name           string       `json:"name"`
	BuyingPrice    int64        `json:"buying_price"`
	Purchasable    bool         `json:"purchasable"`
	SellingPrice   int64        `json:"selling_price"`
	UpgradeCost    int64        `json:"upgrade_cost"`
	SuccessRate    float64      `json:"success_rate"` // percent, 0..100
	SynthesizeCost int64        `json:"synthesize_cost"`
	Recipe         []RecipeItem `json:"recipe,omitempty"`
	DropTable      []DropEntry  `json:"drop_table,omitempty"`
}

// Synthesizable reports whether the tier can be crafted from materials.
func (l SwordLevel) Synthesizable() bool {
	return len(l.Recipe) > 0
}

type RecipeItem struct {
	MaterialID int64 `json:"material_id" toml:"material_id"`
	Quantity   int64 `json:"quantity" toml:"quantity"`
}

type DropEntry struct {
	MaterialID  int64   `json:"material_id" toml:"material_id"`
	Percentage  float64 `json:"percentage" toml:"percentage"`
	MinQuantity int64   `json:"min_quantity" toml:"min_quantity"`
	MaxQuantity int64   `json:"max_quantity" toml:"max_quantity"`
}

type Material struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	BuyingPrice  int64  `json:"buying_price"`
	SellingPrice int64  `json:"selling_price"`
	Purchasable  bool   `json:"purchasable"`
}

type Settings struct {
	StarterGold         int64 `json:"starter_gold" toml:"starter_gold"`
	StarterShields      int64 `json:"starter_shields" toml:"starter_shields"`
	MinVoucherGold      int64 `json:"min_voucher_gold" toml:"min_voucher_gold"`
	MaxVoucherGold      int64 `json:"max_voucher_gold" toml:"max_voucher_gold"`
	ShieldPrice         int64 `json:"shield_price" toml:"shield_price"`
	MaxShieldHold       int64 `json:"max_shield_hold" toml:"max_shield_hold"`
	MaxDailyGoldAds     int64 `json:"max_daily_gold_ads" toml:"max_daily_gold_ads"`
	MaxDailyShieldAds   int64 `json:"max_daily_shield_ads" toml:"max_daily_shield_ads"`
	MaxDailyOldSwordAds int64 `json:"max_daily_old_sword_ads" toml:"max_daily_old_sword_ads"`
	AdGoldReward        int64 `json:"ad_gold_reward" toml:"ad_gold_reward"`
	AdShieldReward      int64 `json:"ad_shield_reward" toml:"ad_shield_reward"`
	AdSwordTier         int   `json:"ad_sword_tier" toml:"ad_sword_tier"`
	AdSwordQuantity     int64 `json:"ad_sword_quantity" toml:"ad_sword_quantity"`
}

// DailyAdCap returns the configured per-day view cap for an ad reward type.
func (s Settings) DailyAdCap(t AdRewardType) int64 {
	switch t {
	case AdRewardGold:
		return s.MaxDailyGoldAds
	case AdRewardShield:
		return s.MaxDailyShieldAds
	case AdRewardOldSword:
		return s.MaxDailyOldSwordAds
	default:
		return 0
	}
}

type AdRewardType string

const (
	AdRewardGold     AdRewardType = "GOLD"
	AdRewardShield   AdRewardType = "SHIELD"
	AdRewardOldSword AdRewardType = "OLD_SWORD"
)

// AdRewardTypes is the allow-list of ad reward types a session may be opened for.
var AdRewardTypes = []AdRewardType{AdRewardGold, AdRewardShield, AdRewardOldSword}

func (t AdRewardType) Valid() bool {
	for _, v := range AdRewardTypes {
		if v == t {
			return true
		}
	}
	return false
}

type DailyMission struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Condition DailyCondition `json:"-"`
	Reward    Reward         `json:"-"`
	Active    bool           `json:"active"`
}

type OneTimeMission struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Conditions  []Condition `json:"-"`
	TargetValue int64       `json:"target_value"`
	Reward      Reward      `json:"-"`
	Active      bool        `json:"active"`
	StartAt     time.Time   `json:"start_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Open reports whether the mission window contains t.
func (m OneTimeMission) Open(t time.Time) bool {
	return !t.Before(m.StartAt) && !t.After(m.ExpiresAt)
}
