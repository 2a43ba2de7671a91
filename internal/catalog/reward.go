package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedReward    = errors.New("unsupported reward type")
	ErrUnsupportedCondition = errors.New("unsupported condition type")
	ErrMalformedReward      = errors.New("malformed reward")
)

// Reward is the closed set of payloads a gift or mission can grant. Only the
// types in this file implement it.
type Reward interface {
	Spec() RewardSpec
	Validate() error
	sealedReward()
}

type GoldReward struct{ Amount int64 }
type TrustPointsReward struct{ Amount int64 }
type ShieldReward struct{ Amount int64 }
type MaterialReward struct {
	MaterialID int64
	Quantity   int64
}
type SwordReward struct {
	Tier     int
	Quantity int64
}

func (GoldReward) sealedReward()        {}
func (TrustPointsReward) sealedReward() {}
func (ShieldReward) sealedReward()      {}
func (MaterialReward) sealedReward()    {}
func (SwordReward) sealedReward()       {}

func (r GoldReward) Validate() error        { return positive("gold amount", r.Amount) }
func (r TrustPointsReward) Validate() error { return positive("trust points amount", r.Amount) }
func (r ShieldReward) Validate() error      { return positive("shield amount", r.Amount) }

func (r MaterialReward) Validate() error {
	if r.MaterialID <= 0 {
		return fmt.Errorf("%w: material id is required", ErrMalformedReward)
	}
	return positive("material quantity", r.Quantity)
}

func (r SwordReward) Validate() error {
	if r.Tier < 0 {
		return fmt.Errorf("%w: sword tier must be >= 0", ErrMalformedReward)
	}
	return positive("sword quantity", r.Quantity)
}

func positive(what string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be > 0", ErrMalformedReward, what)
	}
	return nil
}

// RewardSpec is the flat wire/storage shape of a Reward.
type RewardSpec struct {
	Type       string `json:"type" toml:"type"`
	Amount     int64  `json:"amount,omitempty" toml:"amount"`
	MaterialID int64  `json:"material_id,omitempty" toml:"material_id"`
	Tier       int    `json:"tier,omitempty" toml:"tier"`
	Quantity   int64  `json:"quantity,omitempty" toml:"quantity"`
}

const (
	RewardTypeGold        = "GOLD"
	RewardTypeTrustPoints = "TRUST_POINTS"
	RewardTypeShield      = "SHIELD"
	RewardTypeMaterial    = "MATERIAL"
	RewardTypeSword       = "SWORD"
)

func (r GoldReward) Spec() RewardSpec { return RewardSpec{Type: RewardTypeGold, Amount: r.Amount} }
func (r TrustPointsReward) Spec() RewardSpec {
	return RewardSpec{Type: RewardTypeTrustPoints, Amount: r.Amount}
}
func (r ShieldReward) Spec() RewardSpec { return RewardSpec{Type: RewardTypeShield, Amount: r.Amount} }
func (r MaterialReward) Spec() RewardSpec {
	return RewardSpec{Type: RewardTypeMaterial, MaterialID: r.MaterialID, Quantity: r.Quantity}
}
func (r SwordReward) Spec() RewardSpec {
	return RewardSpec{Type: RewardTypeSword, Tier: r.Tier, Quantity: r.Quantity}
}

// Reward converts the flat shape back into its typed variant.
func (s RewardSpec) Reward() (Reward, error) {
	switch strings.ToUpper(strings.TrimSpace(s.Type)) {
	case RewardTypeGold:
		return GoldReward{Amount: s.Amount}, nil
	case RewardTypeTrustPoints:
		return TrustPointsReward{Amount: s.Amount}, nil
	case RewardTypeShield:
		return ShieldReward{Amount: s.Amount}, nil
	case RewardTypeMaterial:
		return MaterialReward{MaterialID: s.MaterialID, Quantity: s.Quantity}, nil
	case RewardTypeSword:
		return SwordReward{Tier: s.Tier, Quantity: s.Quantity}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedReward, s.Type)
	}
}

func MarshalReward(r Reward) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reward", ErrMalformedReward)
	}
	return json.Marshal(r.Spec())
}

func UnmarshalReward(raw []byte) (Reward, error) {
	var spec RewardSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReward, err)
	}
	return spec.Reward()
}

// Condition is one typed predicate of a one-time mission. Each is resolved by
// summing the account's history inside the mission window.
type Condition interface {
	Spec() ConditionSpec
	sealedCondition()
}

type BuySwordCondition struct{ Tier *int }
type BuyMaterialCondition struct{ MaterialID *int64 }
type BuyShieldCondition struct{}
type UpgradeSwordCondition struct{ Tier *int }
type SynthesizeCondition struct{ Tier *int }

func (BuySwordCondition) sealedCondition()     {}
func (BuyMaterialCondition) sealedCondition()  {}
func (BuyShieldCondition) sealedCondition()    {}
func (UpgradeSwordCondition) sealedCondition() {}
func (SynthesizeCondition) sealedCondition()   {}

const (
	ConditionBuySword     = "buySword"
	ConditionBuyMaterial  = "buyMaterial"
	ConditionBuyShield    = "buyShield"
	ConditionUpgradeSword = "upgradeSword"
	ConditionSynthesize   = "synthesize"

	ConditionCompleteAllAds = "completeAllAds"
)

type ConditionSpec struct {
	Type       string `json:"type" toml:"type"`
	Tier       *int   `json:"tier,omitempty" toml:"tier"`
	MaterialID *int64 `json:"material_id,omitempty" toml:"material_id"`
	RewardType string `json:"reward_type,omitempty" toml:"reward_type"`
}

func (c BuySwordCondition) Spec() ConditionSpec { return ConditionSpec{Type: ConditionBuySword, Tier: c.Tier} }
func (c BuyMaterialCondition) Spec() ConditionSpec {
	return ConditionSpec{Type: ConditionBuyMaterial, MaterialID: c.MaterialID}
}
func (BuyShieldCondition) Spec() ConditionSpec { return ConditionSpec{Type: ConditionBuyShield} }
func (c UpgradeSwordCondition) Spec() ConditionSpec {
	return ConditionSpec{Type: ConditionUpgradeSword, Tier: c.Tier}
}
func (c SynthesizeCondition) Spec() ConditionSpec {
	return ConditionSpec{Type: ConditionSynthesize, Tier: c.Tier}
}

func (s ConditionSpec) Condition() (Condition, error) {
	switch strings.TrimSpace(s.Type) {
	case ConditionBuySword:
		return BuySwordCondition{Tier: s.Tier}, nil
	case ConditionBuyMaterial:
		return BuyMaterialCondition{MaterialID: s.MaterialID}, nil
	case ConditionBuyShield:
		return BuyShieldCondition{}, nil
	case ConditionUpgradeSword:
		return UpgradeSwordCondition{Tier: s.Tier}, nil
	case ConditionSynthesize:
		return SynthesizeCondition{Tier: s.Tier}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCondition, s.Type)
	}
}

// DailyCondition is the vocabulary of recurring mission checks. Today it has a
// single variant.
type DailyCondition interface {
	Spec() ConditionSpec
	sealedDailyCondition()
}

// CompleteAllAdsCondition holds once the account has watched the full daily
// cap of ads for RewardType.
type CompleteAllAdsCondition struct{ RewardType AdRewardType }

func (CompleteAllAdsCondition) sealedDailyCondition() {}

func (c CompleteAllAdsCondition) Spec() ConditionSpec {
	return ConditionSpec{Type: ConditionCompleteAllAds, RewardType: string(c.RewardType)}
}

func (s ConditionSpec) DailyCondition() (DailyCondition, error) {
	if strings.TrimSpace(s.Type) != ConditionCompleteAllAds {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCondition, s.Type)
	}
	t := AdRewardType(strings.ToUpper(strings.TrimSpace(s.RewardType)))
	if !t.Valid() {
		return nil, fmt.Errorf("%w: ad reward type %q", ErrUnsupportedCondition, s.RewardType)
	}
	return CompleteAllAdsCondition{RewardType: t}, nil
}

func MarshalConditions(conds []Condition) ([]byte, error) {
	specs := make([]ConditionSpec, 0, len(conds))
	for _, c := range conds {
		specs = append(specs, c.Spec())
	}
	return json.Marshal(specs)
}

func UnmarshalConditions(raw []byte) ([]Condition, error) {
	var specs []ConditionSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	out := make([]Condition, 0, len(specs))
	for _, s := range specs {
		c, err := s.Condition()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
