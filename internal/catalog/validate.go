package catalog

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalid = errors.New("invalid catalog data")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// ValidateSwordLevel checks the values of one tier on their own. Material
// references are checked by Validate.
func ValidateSwordLevel(l SwordLevel) error {
	if l.Tier < 0 {
		return invalid("sword tier %d is negative", l.Tier)
	}
	for _, p := range []struct {
		name string
		v    int64
	}{
		{"buying_price", l.BuyingPrice},
		{"selling_price", l.SellingPrice},
		{"upgrade_cost", l.UpgradeCost},
		{"synthesize_cost", l.SynthesizeCost},
	} {
		if p.v < 0 {
			return invalid("sword tier %d %s is negative", l.Tier, p.name)
		}
	}
	if math.IsNaN(l.SuccessRate) || l.SuccessRate < 0 || l.SuccessRate > 100 {
		return invalid("sword tier %d success_rate %v outside 0..100", l.Tier, l.SuccessRate)
	}
	for _, it := range l.Recipe {
		if it.Quantity <= 0 {
			return invalid("sword tier %d recipe material %d quantity must be > 0", l.Tier, it.MaterialID)
		}
	}
	for i, e := range l.DropTable {
		if err := ValidateDropEntry(e); err != nil {
			return fmt.Errorf("sword tier %d drop %d: %w", l.Tier, i, err)
		}
	}
	return nil
}

// ValidateDropEntry requires a percentage in (0, 100] and a quantity range
// whose width fits in an int64.
func ValidateDropEntry(e DropEntry) error {
	if math.IsNaN(e.Percentage) || e.Percentage <= 0 || e.Percentage > 100 {
		return invalid("drop percentage %v outside (0, 100]", e.Percentage)
	}
	if e.MinQuantity < 1 {
		return invalid("drop min_quantity %d must be >= 1", e.MinQuantity)
	}
	if e.MaxQuantity < e.MinQuantity {
		return invalid("drop max_quantity %d below min_quantity %d", e.MaxQuantity, e.MinQuantity)
	}
	if e.MaxQuantity-e.MinQuantity == math.MaxInt64 {
		return invalid("drop quantity range %d..%d too wide", e.MinQuantity, e.MaxQuantity)
	}
	return nil
}

func ValidateMaterial(m Material) error {
	if m.BuyingPrice < 0 || m.SellingPrice < 0 {
		return invalid("material %d has a negative price", m.ID)
	}
	return nil
}

func ValidateSettings(s Settings) error {
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"starter_gold", s.StarterGold},
		{"starter_shields", s.StarterShields},
		{"min_voucher_gold", s.MinVoucherGold},
		{"max_voucher_gold", s.MaxVoucherGold},
		{"shield_price", s.ShieldPrice},
		{"max_shield_hold", s.MaxShieldHold},
		{"max_daily_gold_ads", s.MaxDailyGoldAds},
		{"max_daily_shield_ads", s.MaxDailyShieldAds},
		{"max_daily_old_sword_ads", s.MaxDailyOldSwordAds},
		{"ad_gold_reward", s.AdGoldReward},
		{"ad_shield_reward", s.AdShieldReward},
		{"ad_sword_quantity", s.AdSwordQuantity},
	} {
		if f.v < 0 {
			return invalid("settings %s is negative", f.name)
		}
	}
	if s.MaxVoucherGold < s.MinVoucherGold {
		return invalid("settings max_voucher_gold %d below min_voucher_gold %d", s.MaxVoucherGold, s.MinVoucherGold)
	}
	return nil
}

// Validate checks a full data set, including that every recipe, drop and
// reward points at a material or tier that exists.
func Validate(settings Settings, swords []SwordLevel, materials []Material, daily []DailyMission, oneTime []OneTimeMission) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	matIDs := make(map[int64]bool, len(materials))
	for _, m := range materials {
		if matIDs[m.ID] {
			return invalid("material %d defined twice", m.ID)
		}
		if err := ValidateMaterial(m); err != nil {
			return err
		}
		matIDs[m.ID] = true
	}
	tiers := make(map[int]bool, len(swords))
	for _, l := range swords {
		if tiers[l.Tier] {
			return invalid("sword tier %d defined twice", l.Tier)
		}
		if err := ValidateSwordLevel(l); err != nil {
			return err
		}
		tiers[l.Tier] = true
	}
	for _, l := range swords {
		for _, it := range l.Recipe {
			if !matIDs[it.MaterialID] {
				return invalid("sword tier %d recipe uses unknown material %d", l.Tier, it.MaterialID)
			}
		}
		for _, e := range l.DropTable {
			if !matIDs[e.MaterialID] {
				return invalid("sword tier %d drops unknown material %d", l.Tier, e.MaterialID)
			}
		}
	}
	if settings.MaxDailyOldSwordAds > 0 && !tiers[settings.AdSwordTier] {
		return invalid("settings ad_sword_tier %d is not a sword tier", settings.AdSwordTier)
	}

	checkReward := func(owner string, r Reward) error {
		if r == nil {
			return invalid("%s has no reward", owner)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", owner, err)
		}
		switch r := r.(type) {
		case MaterialReward:
			if !matIDs[r.MaterialID] {
				return invalid("%s rewards unknown material %d", owner, r.MaterialID)
			}
		case SwordReward:
			if !tiers[r.Tier] {
				return invalid("%s rewards unknown sword tier %d", owner, r.Tier)
			}
		}
		return nil
	}
	for _, m := range daily {
		if m.Condition == nil {
			return invalid("daily mission %s has no condition", m.ID)
		}
		if err := checkReward("daily mission "+m.ID, m.Reward); err != nil {
			return err
		}
	}
	for _, m := range oneTime {
		if m.TargetValue <= 0 {
			return invalid("mission %s target_value must be > 0", m.ID)
		}
		if !m.ExpiresAt.After(m.StartAt) {
			return invalid("mission %s expires before it starts", m.ID)
		}
		if err := checkReward("mission "+m.ID, m.Reward); err != nil {
			return err
		}
	}
	return nil
}
