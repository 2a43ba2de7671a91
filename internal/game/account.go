package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// EnsureAccount returns the account for id, creating it with the starter
// balances from settings on first sight.
func (s *Service) EnsureAccount(ctx context.Context, id, email string) (Account, error) {
	id = strings.TrimSpace(id)
	email = strings.ToLower(strings.TrimSpace(email))
	if id == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return Account{}, err
	}

	var out Account
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		acct, err := tx.Account(ctx, id)
		if err == nil {
			out = acct
			return nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		now := s.clock()
		out = Account{
			ID:          id,
			Email:       email,
			Gold:        settings.StarterGold,
			ShieldCount: settings.StarterShields,
			CountersDay: utcDay(now),
			CreatedAt:   now,
		}
		return tx.CreateAccount(ctx, out)
	})
	if err != nil {
		return Account{}, err
	}
	return out, nil
}

type Dashboard struct {
	Account   Account         `json:"account"`
	Swords    []SwordStock    `json:"swords"`
	Materials []MaterialStock `json:"materials"`
}

func (s *Service) Dashboard(ctx context.Context, accountID string) (Dashboard, error) {
	var out Dashboard
	err := s.viewAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct Account) error {
		swords, err := tx.SwordStocks(ctx, accountID)
		if err != nil {
			return err
		}
		materials, err := tx.MaterialStocks(ctx, accountID)
		if err != nil {
			return err
		}
		out = Dashboard{Account: acct, Swords: swords, Materials: materials}
		return nil
	})
	return out, err
}

// DeleteAccount erases the account and everything it owns.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.DeleteAccount(ctx, accountID)
	})
	if err == nil {
		s.log.Info("account deleted", "account_id", accountID)
	}
	return err
}

func (s *Service) SetBanned(ctx context.Context, accountID string, banned bool) error {
	if accountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			return err
		}
		acct.IsBanned = banned
		return tx.UpdateAccount(ctx, acct)
	})
	if err == nil {
		s.log.Info("account ban updated", "account_id", accountID, "banned", banned)
	}
	return err
}

// ResetDailyCounters zeroes stale ad counters for every account in bulk. The
// per-request reset in withAccount remains authoritative; this only tidies
// dormant accounts.
func (s *Service) ResetDailyCounters(ctx context.Context) (int64, error) {
	n, err := s.store.ResetStaleDailyCounters(ctx, utcDay(s.clock()))
	if err != nil {
		return 0, err
	}
	s.log.Info("daily counters reset", "accounts", n)
	return n, nil
}

func (s *Service) UpgradeLog(ctx context.Context, accountID string, limit int) ([]UpgradeHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []UpgradeHistory
	err := s.viewAccount(ctx, accountID, func(ctx context.Context, tx Tx, _ Account) error {
		var err error
		out, err = tx.UpgradeHistory(ctx, accountID, limit)
		return err
	})
	return out, err
}
