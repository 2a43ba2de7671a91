package game

import (
	"context"
	"time"
)

// Store is the unit of work the engine runs against. InTx executes fn in one
// atomic transaction: either every write fn made is committed or none is.
// Implementations may re-run fn on serialization conflicts, so fn must not
// have side effects outside tx.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ReadTx runs fn against a consistent snapshot without locking rows.
	// Writes made by fn are not persisted.
	ReadTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ResetStaleDailyCounters zeroes daily ad counters of every account whose
	// counters were last touched before day.
	ResetStaleDailyCounters(ctx context.Context, day time.Time) (int64, error)
}

// Tx is the set of reads and writes available inside a transaction. Reads
// that feed a later write (Account, Voucher, Gift, AdSession) lock the row
// for the remainder of the transaction.
type Tx interface {
	CreateAccount(ctx context.Context, a Account) error
	Account(ctx context.Context, id string) (Account, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, id string) error

	// SwordStock returns a zero row keyed by (accountID, tier) when none exists.
	SwordStock(ctx context.Context, accountID string, tier int) (SwordStock, error)
	SwordStocks(ctx context.Context, accountID string) ([]SwordStock, error)
	PutSwordStock(ctx context.Context, s SwordStock) error
	MaterialStock(ctx context.Context, accountID string, materialID int64) (MaterialStock, error)
	MaterialStocks(ctx context.Context, accountID string) ([]MaterialStock, error)
	PutMaterialStock(ctx context.Context, m MaterialStock) error

	// InsertVoucher fails with ErrVoucherCodeTaken when the code is in use.
	InsertVoucher(ctx context.Context, v Voucher) error
	Voucher(ctx context.Context, id string) (Voucher, error)
	VoucherByCode(ctx context.Context, code string) (Voucher, error)
	Vouchers(ctx context.Context, creatorID string) ([]Voucher, error)
	// UpdateVoucherIfPending writes v only if the stored row is still PENDING.
	UpdateVoucherIfPending(ctx context.Context, v Voucher) (bool, error)

	InsertGift(ctx context.Context, g Gift) error
	Gift(ctx context.Context, id string) (Gift, error)
	Gifts(ctx context.Context, receiverID string) ([]Gift, error)
	SetGiftStatusIfPending(ctx context.Context, id string, status GiftStatus, at time.Time) (bool, error)

	InsertAdSession(ctx context.Context, s AdSession) error
	AdSession(ctx context.Context, nonce string) (AdSession, error)
	MarkAdSessionVerified(ctx context.Context, nonce string) (bool, error)
	DeleteAdSession(ctx context.Context, nonce string) (bool, error)
	PurgeAdSessions(ctx context.Context, createdBefore time.Time) (int64, error)

	DailyMissionProgress(ctx context.Context, accountID, missionID string) (DailyMissionProgress, bool, error)
	PutDailyMissionProgress(ctx context.Context, p DailyMissionProgress) error
	OneTimeMissionProgress(ctx context.Context, accountID, missionID string) (OneTimeMissionProgress, bool, error)
	// InsertOneTimeMissionProgress fails with ErrMissionAlreadyClaimed on a duplicate.
	InsertOneTimeMissionProgress(ctx context.Context, p OneTimeMissionProgress) error

	InsertUpgradeHistory(ctx context.Context, h UpgradeHistory) error
	UpgradeHistory(ctx context.Context, accountID string, limit int) ([]UpgradeHistory, error)
	InsertSynthesisHistory(ctx context.Context, h SynthesisHistory) error
	InsertPurchase(ctx context.Context, p PurchaseRecord) error
	SumActivity(ctx context.Context, accountID string, f ActivityFilter) (int64, error)
}
