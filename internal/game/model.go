package game

import (
	"encoding/json"
	"time"

	"swordsmith/internal/catalog"
)

const (
	MaxSwordTier = 100

	// AdSessionTTL bounds how long an unclaimed ad session stays claimable.
	AdSessionTTL = 15 * time.Minute

	voucherCodeLength   = 16
	voucherCodeAttempts = 10
)

type Account struct {
	ID                      string    `json:"id"`
	Email                   string    `json:"email"`
	Gold                    int64     `json:"gold"`
	TrustPoints             int64     `json:"trust_points"`
	ShieldCount             int64     `json:"shield_count"`
	ShieldProtectionEnabled bool      `json:"shield_protection_enabled"`
	AnvilSwordTier          *int      `json:"anvil_sword_tier"`
	DailyGoldAds            int64     `json:"daily_gold_ads"`
	DailyShieldAds          int64     `json:"daily_shield_ads"`
	DailyOldSwordAds        int64     `json:"daily_old_sword_ads"`
	CountersDay             time.Time `json:"counters_day"`
	TotalAdsViewed          int64     `json:"total_ads_viewed"`
	TotalMissionsDone       int64     `json:"total_missions_done"`
	IsBanned                bool      `json:"is_banned"`
	CreatedAt               time.Time `json:"created_at"`
}

// DailyAds returns today's view count for an ad reward type.
func (a Account) DailyAds(t catalog.AdRewardType) int64 {
	switch t {
	case catalog.AdRewardGold:
		return a.DailyGoldAds
	case catalog.AdRewardShield:
		return a.DailyShieldAds
	case catalog.AdRewardOldSword:
		return a.DailyOldSwordAds
	default:
		return 0
	}
}

func (a *Account) countAd(t catalog.AdRewardType) {
	switch t {
	case catalog.AdRewardGold:
		a.DailyGoldAds++
	case catalog.AdRewardShield:
		a.DailyShieldAds++
	case catalog.AdRewardOldSword:
		a.DailyOldSwordAds++
	}
	a.TotalAdsViewed++
}

// rollDailyCounters zeroes the per-day ad counters when day is later than the
// day they were last counted on. It reports whether anything changed.
func (a *Account) rollDailyCounters(day time.Time) bool {
	if !a.CountersDay.Before(day) {
		return false
	}
	a.DailyGoldAds = 0
	a.DailyShieldAds = 0
	a.DailyOldSwordAds = 0
	a.CountersDay = day
	return true
}

type SwordStock struct {
	AccountID string `json:"-"`
	Tier      int    `json:"tier"`
	Unsold    int64  `json:"unsold_quantity"`
	Sold      int64  `json:"sold_quantity"`
	Broken    int64  `json:"broken_quantity"`
	IsMounted bool   `json:"is_mounted"`
}

func (s SwordStock) Empty() bool {
	return s.Unsold == 0 && s.Sold == 0 && s.Broken == 0 && !s.IsMounted
}

type MaterialStock struct {
	AccountID  string `json:"-"`
	MaterialID int64  `json:"material_id"`
	Unsold     int64  `json:"unsold_quantity"`
	Sold       int64  `json:"sold_quantity"`
}

func (m MaterialStock) Empty() bool {
	return m.Unsold == 0 && m.Sold == 0
}

type VoucherStatus string

const (
	VoucherPending   VoucherStatus = "PENDING"
	VoucherRedeemed  VoucherStatus = "REDEEMED"
	VoucherCancelled VoucherStatus = "CANCELLED"
	// VoucherExpired is reserved; nothing in the engine moves a voucher into it.
	VoucherExpired VoucherStatus = "EXPIRED"
)

type Voucher struct {
	ID                string        `json:"id"`
	Code              string        `json:"code"`
	CreatorID         string        `json:"creator_id"`
	GoldAmount        int64         `json:"gold_amount"`
	Status            VoucherStatus `json:"status"`
	AllowedRedeemerID *string       `json:"allowed_redeemer_id,omitempty"`
	RedeemedBy        *string       `json:"redeemed_by,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type GiftStatus string

const (
	GiftPending   GiftStatus = "PENDING"
	GiftClaimed   GiftStatus = "CLAIMED"
	GiftCancelled GiftStatus = "CANCELLED"
)

type Gift struct {
	ID         string         `json:"id"`
	ReceiverID string         `json:"receiver_id"`
	Reward     catalog.Reward `json:"-"`
	Status     GiftStatus     `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ClaimedAt  *time.Time     `json:"claimed_at,omitempty"`
}

func (g Gift) MarshalJSON() ([]byte, error) {
	type plain Gift
	out := struct {
		plain
		Reward *catalog.RewardSpec `json:"reward,omitempty"`
	}{plain: plain(g)}
	if g.Reward != nil {
		spec := g.Reward.Spec()
		out.Reward = &spec
	}
	return json.Marshal(out)
}

type AdSession struct {
	Nonce      string               `json:"nonce"`
	AccountID  string               `json:"account_id"`
	RewardType catalog.AdRewardType `json:"reward_type"`
	Verified   bool                 `json:"verified"`
	CreatedAt  time.Time            `json:"created_at"`
}

func (s AdSession) expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > AdSessionTTL
}

type DailyMissionProgress struct {
	AccountID     string    `json:"-"`
	MissionID     string    `json:"mission_id"`
	TimesClaimed  int64     `json:"times_claimed"`
	LastClaimedAt time.Time `json:"last_claimed_at"`
}

type OneTimeMissionProgress struct {
	AccountID string    `json:"-"`
	MissionID string    `json:"mission_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type UpgradeHistory struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"-"`
	Tier           int       `json:"tier"`
	GoldSpent      int64     `json:"gold_spent"`
	Success        bool      `json:"success"`
	ShieldUsed     bool      `json:"shield_used"`
	DropMaterialID *int64    `json:"drop_material_id,omitempty"`
	DropQuantity   int64     `json:"drop_quantity,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type SynthesisHistory struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	Tier      int       `json:"tier"`
	GoldSpent int64     `json:"gold_spent"`
	CreatedAt time.Time `json:"created_at"`
}

type PurchaseKind string

const (
	PurchaseSword    PurchaseKind = "SWORD"
	PurchaseMaterial PurchaseKind = "MATERIAL"
	PurchaseShield   PurchaseKind = "SHIELD"
)

type PurchaseRecord struct {
	ID         string       `json:"id"`
	AccountID  string       `json:"-"`
	Kind       PurchaseKind `json:"kind"`
	Tier       *int         `json:"tier,omitempty"`
	MaterialID *int64       `json:"material_id,omitempty"`
	Quantity   int64        `json:"quantity"`
	GoldSpent  int64        `json:"gold_spent"`
	CreatedAt  time.Time    `json:"created_at"`
}

type ActivityKind int

const (
	ActivityBuySword ActivityKind = iota
	ActivityBuyMaterial
	ActivityBuyShield
	ActivityUpgrade
	ActivitySynthesis
)

// ActivityFilter selects history rows for one-time mission progress. Purchase
// kinds sum quantities; upgrade and synthesis kinds count attempts. The window
// is inclusive on both ends.
type ActivityFilter struct {
	Kind       ActivityKind
	Tier       *int
	MaterialID *int64
	From       time.Time
	To         time.Time
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
