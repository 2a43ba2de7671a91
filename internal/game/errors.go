package game

import (
	"errors"

	"swordsmith/internal/catalog"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountBanned      = errors.New("account is banned")
	ErrInsufficientFunds  = errors.New("insufficient gold")
	ErrInsufficientTrust  = errors.New("insufficient trust points")
	ErrInsufficientShield = errors.New("insufficient shields")
	ErrInsufficientStock  = errors.New("insufficient sword stock")
	ErrInsufficientMat    = errors.New("insufficient material")
	ErrShieldHoldExceeded = errors.New("shield holding limit reached")

	ErrTierNotFound     = errors.New("sword tier not found")
	ErrMaterialNotFound = errors.New("material not found")
	ErrNotPurchasable   = errors.New("item is not purchasable")
	ErrNotSynthesizable = errors.New("sword tier has no synthesis recipe")

	ErrTierNotOwned    = errors.New("sword tier not owned")
	ErrNotMounted      = errors.New("sword is not mounted on the anvil")
	ErrAlreadyMounted  = errors.New("sword tier already mounted")
	ErrNothingMounted  = errors.New("anvil is empty")
	ErrMaxTierReached  = errors.New("maximum sword tier reached")
	ErrShieldRequired  = errors.New("shield protection enabled but no shield available")
	ErrNoDropTable     = errors.New("no drop table defined for tier")
	ErrNextTierMissing = errors.New("next sword tier is not defined")
	ErrRewardMissing   = errors.New("reward references undefined catalog entry")

	ErrVoucherNotFound         = errors.New("voucher not found")
	ErrVoucherNotOwner         = errors.New("voucher belongs to another account")
	ErrVoucherNotPending       = errors.New("voucher is no longer pending")
	ErrVoucherAmount           = errors.New("voucher amount out of range")
	ErrVoucherSelfAssign       = errors.New("cannot assign a voucher to yourself")
	ErrVoucherRedeemerBanned   = errors.New("redeemer account is banned")
	ErrVoucherNoRedeemer       = errors.New("voucher has no assigned redeemer")
	ErrVoucherRedeemerMismatch = errors.New("voucher is assigned to another account")
	ErrVoucherOwnRedeem        = errors.New("cannot redeem your own voucher")
	ErrVoucherCodeTaken        = errors.New("voucher code already in use")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique voucher code")
	ErrStatusChanged           = errors.New("status changed concurrently")

	ErrGiftNotFound       = errors.New("gift not found")
	ErrGiftNotReceiver    = errors.New("gift belongs to another account")
	ErrGiftAlreadyClaimed = errors.New("gift already claimed")
	ErrGiftCancelled      = errors.New("gift was cancelled")

	ErrInvalidAdRewardType  = errors.New("invalid ad reward type")
	ErrDailyAdCapReached    = errors.New("daily ad limit reached")
	ErrSessionNotFound      = errors.New("ad session not found")
	ErrSessionNotVerified   = errors.New("ad session not verified")
	ErrSessionOwnerMismatch = errors.New("ad session belongs to another account")

	ErrMissionNotFound       = errors.New("mission not found")
	ErrMissionInactive       = errors.New("mission is not active")
	ErrMissionClosed         = errors.New("mission window is closed")
	ErrMissionNotEligible    = errors.New("mission condition not met")
	ErrMissionAlreadyClaimed = errors.New("mission already claimed")

	ErrTxConflict = errors.New("transaction conflict, retry")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPrecondition
	KindNotFound
	KindConflict
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindFatal:
		return "fatal"
	default:
		return "internal"
	}
}

var errorKinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{ErrInvalidInput, ErrVoucherAmount, ErrInvalidAdRewardType}},
	{KindFatal, []error{
		ErrNoDropTable, ErrNextTierMissing, ErrRewardMissing,
		catalog.ErrUnsupportedReward, catalog.ErrUnsupportedCondition, catalog.ErrMalformedReward, catalog.ErrInvalid,
	}},
	{KindConflict, []error{ErrCodeGenerationExhausted, ErrStatusChanged, ErrTxConflict, ErrVoucherCodeTaken, ErrAccountExists}},
	{KindNotFound, []error{
		ErrAccountNotFound, ErrTierNotFound, ErrMaterialNotFound, ErrVoucherNotFound,
		ErrGiftNotFound, ErrSessionNotFound, ErrMissionNotFound,
	}},
	{KindPrecondition, []error{
		ErrAccountBanned, ErrInsufficientFunds, ErrInsufficientTrust, ErrInsufficientShield,
		ErrInsufficientStock, ErrInsufficientMat, ErrShieldHoldExceeded, ErrNotPurchasable,
		ErrNotSynthesizable, ErrTierNotOwned, ErrNotMounted, ErrAlreadyMounted, ErrNothingMounted,
		ErrMaxTierReached, ErrShieldRequired, ErrVoucherNotOwner, ErrVoucherNotPending,
		ErrVoucherSelfAssign, ErrVoucherRedeemerBanned, ErrVoucherNoRedeemer,
		ErrVoucherRedeemerMismatch, ErrVoucherOwnRedeem, ErrGiftNotReceiver, ErrGiftAlreadyClaimed,
		ErrGiftCancelled, ErrDailyAdCapReached, ErrSessionNotVerified, ErrSessionOwnerMismatch,
		ErrMissionInactive, ErrMissionClosed, ErrMissionNotEligible, ErrMissionAlreadyClaimed,
	}},
}

// KindOf classifies err. Unrecognised errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}
