package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"swordsmith/internal/catalog"
)

type Service struct {
	store   Store
	catalog catalog.Catalog
	log     *slog.Logger
	rand    Random
	now     func() time.Time
	codes   func() (string, error)
}

type Option func(*Service)

// WithRandom replaces the roll source used by upgrades and drops.
func WithRandom(r Random) Option {
	return func(s *Service) { s.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithVoucherCodes replaces the voucher code generator.
func WithVoucherCodes(gen func() (string, error)) Option {
	return func(s *Service) { s.codes = gen }
}

func NewService(store Store, cat catalog.Catalog, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:   store,
		catalog: cat,
		log:     logger,
		rand:    newLockedRand(),
		now:     time.Now,
		codes:   generateVoucherCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() catalog.Catalog {
	return s.catalog
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// utcDay truncates t to midnight of its UTC calendar day.
func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameUTCDay(a, b time.Time) bool {
	return utcDay(a).Equal(utcDay(b))
}

// withAccount runs fn in a transaction holding the account row. Banned
// accounts are rejected, stale daily counters are reset, and the account is
// written back when fn succeeds.
func (s *Service) withAccount(ctx context.Context, accountID string, fn func(ctx context.Context, tx Tx, acct *Account) error) error {
	if accountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if acct.IsBanned {
			return ErrAccountBanned
		}
		acct.rollDailyCounters(utcDay(s.clock()))
		if err := fn(ctx, tx, &acct); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, acct)
	})
}

// viewAccount is the read-only counterpart of withAccount. Counters are rolled
// on the returned copy so views match what the next write would see, but
// nothing is written back.
func (s *Service) viewAccount(ctx context.Context, accountID string, fn func(ctx context.Context, tx Tx, acct Account) error) error {
	if accountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if acct.IsBanned {
			return ErrAccountBanned
		}
		acct.rollDailyCounters(utcDay(s.clock()))
		return fn(ctx, tx, acct)
	})
}

func (s *Service) swordLevel(ctx context.Context, tier int) (catalog.SwordLevel, error) {
	if tier < 0 || tier > MaxSwordTier {
		return catalog.SwordLevel{}, fmt.Errorf("%w: tier must be between 0 and %d", ErrInvalidInput, MaxSwordTier)
	}
	l, err := s.catalog.SwordLevel(ctx, tier)
	if errors.Is(err, catalog.ErrNotFound) {
		return l, fmt.Errorf("%w: %d", ErrTierNotFound, tier)
	}
	return l, err
}

func (s *Service) material(ctx context.Context, id int64) (catalog.Material, error) {
	if id <= 0 {
		return catalog.Material{}, fmt.Errorf("%w: material id is required", ErrInvalidInput)
	}
	m, err := s.catalog.Material(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return m, fmt.Errorf("%w: %d", ErrMaterialNotFound, id)
	}
	return m, err
}

func newID() string {
	return uuid.NewString()
}
