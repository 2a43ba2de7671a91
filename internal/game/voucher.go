package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"swordsmith/internal/retry"
)

// CreateVoucher locks amount gold from the creator behind a fresh code. A code
// collision rolls the attempt back and tries again with a new code.
func (s *Service) CreateVoucher(ctx context.Context, creatorID string, amount int64) (Voucher, error) {
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return Voucher{}, err
	}
	if amount < settings.MinVoucherGold || amount > settings.MaxVoucherGold || amount <= 0 {
		return Voucher{}, fmt.Errorf("%w: must be between %d and %d", ErrVoucherAmount, settings.MinVoucherGold, settings.MaxVoucherGold)
	}

	var out Voucher
	isCollision := func(err error) bool { return errors.Is(err, ErrVoucherCodeTaken) }
	err = retry.Do(ctx, retry.Immediate(voucherCodeAttempts), isCollision, func(attempt int) error {
		code, err := s.codes()
		if err != nil {
			return err
		}
		if attempt > 1 {
			s.log.Warn("voucher code collision, retrying", "account_id", creatorID, "attempt", attempt)
		}
		return s.withAccount(ctx, creatorID, func(ctx context.Context, tx Tx, acct *Account) error {
			if err := debit(acct, BalanceGold, amount); err != nil {
				return err
			}
			now := s.clock()
			out = Voucher{
				ID:         newID(),
				Code:       code,
				CreatorID:  creatorID,
				GoldAmount: amount,
				Status:     VoucherPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			return tx.InsertVoucher(ctx, out)
		})
	})
	if errors.Is(err, retry.ErrExhausted) {
		return Voucher{}, fmt.Errorf("%w: %w", ErrCodeGenerationExhausted, err)
	}
	if err != nil {
		return Voucher{}, err
	}
	s.log.Info("voucher created", "account_id", creatorID, "voucher_id", out.ID, "gold", amount)
	return out, nil
}

// ownPendingVoucher loads a voucher the caller created and that is still pending.
func ownPendingVoucher(ctx context.Context, tx Tx, creatorID, voucherID string) (Voucher, error) {
	v, err := tx.Voucher(ctx, voucherID)
	if err != nil {
		return v, err
	}
	if v.CreatorID != creatorID {
		return v, ErrVoucherNotOwner
	}
	if v.Status != VoucherPending {
		return v, fmt.Errorf("%w: status %s", ErrVoucherNotPending, v.Status)
	}
	return v, nil
}

func updatePending(ctx context.Context, tx Tx, v Voucher) error {
	ok, err := tx.UpdateVoucherIfPending(ctx, v)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: voucher %s", ErrStatusChanged, v.ID)
	}
	return nil
}

// AssignRedeemer restricts who may redeem the voucher to the account with email.
func (s *Service) AssignRedeemer(ctx context.Context, creatorID, voucherID, email string) (Voucher, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if voucherID == "" || email == "" {
		return Voucher{}, fmt.Errorf("%w: voucher id and email are required", ErrInvalidInput)
	}
	var out Voucher
	err := s.withAccount(ctx, creatorID, func(ctx context.Context, tx Tx, acct *Account) error {
		v, err := ownPendingVoucher(ctx, tx, creatorID, voucherID)
		if err != nil {
			return err
		}
		target, err := tx.AccountByEmail(ctx, email)
		if err != nil {
			return err
		}
		if target.ID == creatorID {
			return ErrVoucherSelfAssign
		}
		if target.IsBanned {
			return ErrVoucherRedeemerBanned
		}
		v.AllowedRedeemerID = &target.ID
		v.UpdatedAt = s.clock()
		if err := updatePending(ctx, tx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Service) RemoveRedeemer(ctx context.Context, creatorID, voucherID string) (Voucher, error) {
	if voucherID == "" {
		return Voucher{}, fmt.Errorf("%w: voucher id is required", ErrInvalidInput)
	}
	var out Voucher
	err := s.withAccount(ctx, creatorID, func(ctx context.Context, tx Tx, acct *Account) error {
		v, err := ownPendingVoucher(ctx, tx, creatorID, voucherID)
		if err != nil {
			return err
		}
		if v.AllowedRedeemerID == nil {
			return ErrVoucherNoRedeemer
		}
		v.AllowedRedeemerID = nil
		v.UpdatedAt = s.clock()
		if err := updatePending(ctx, tx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// CancelVoucher refunds the locked gold to the creator.
func (s *Service) CancelVoucher(ctx context.Context, creatorID, voucherID string) (Voucher, error) {
	if voucherID == "" {
		return Voucher{}, fmt.Errorf("%w: voucher id is required", ErrInvalidInput)
	}
	var out Voucher
	err := s.withAccount(ctx, creatorID, func(ctx context.Context, tx Tx, acct *Account) error {
		v, err := ownPendingVoucher(ctx, tx, creatorID, voucherID)
		if err != nil {
			return err
		}
		v.Status = VoucherCancelled
		v.UpdatedAt = s.clock()
		if err := updatePending(ctx, tx, v); err != nil {
			return err
		}
		if err := credit(acct, BalanceGold, v.GoldAmount); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.log.Info("voucher cancelled", "account_id", creatorID, "voucher_id", voucherID, "refund", out.GoldAmount)
	return out, nil
}

// RedeemVoucher credits the voucher's gold to the caller.
func (s *Service) RedeemVoucher(ctx context.Context, accountID, code string) (Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Voucher{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	var out Voucher
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		v, err := tx.VoucherByCode(ctx, code)
		if err != nil {
			return err
		}
		if v.CreatorID == accountID {
			return ErrVoucherOwnRedeem
		}
		if v.Status != VoucherPending {
			return fmt.Errorf("%w: status %s", ErrVoucherNotPending, v.Status)
		}
		if v.AllowedRedeemerID != nil && *v.AllowedRedeemerID != accountID {
			return ErrVoucherRedeemerMismatch
		}
		v.Status = VoucherRedeemed
		redeemer := accountID
		v.RedeemedBy = &redeemer
		v.UpdatedAt = s.clock()
		if err := updatePending(ctx, tx, v); err != nil {
			return err
		}
		if err := credit(acct, BalanceGold, v.GoldAmount); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.log.Info("voucher redeemed", "account_id", accountID, "voucher_id", out.ID, "gold", out.GoldAmount)
	return out, nil
}

func (s *Service) ListVouchers(ctx context.Context, creatorID string) ([]Voucher, error) {
	var out []Voucher
	err := s.viewAccount(ctx, creatorID, func(ctx context.Context, tx Tx, _ Account) error {
		var err error
		out, err = tx.Vouchers(ctx, creatorID)
		return err
	})
	return out, err
}
