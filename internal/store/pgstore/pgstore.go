// Package pgstore implements game.Store on Postgres. Every unit of work runs
// in a serializable transaction and is retried on serialization failures.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"swordsmith/internal/game"
	"swordsmith/internal/retry"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type Store struct {
	db     *pgxpool.Pool
	log    *slog.Logger
	policy retry.Policy
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger, policy: retry.TxConflict}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	err := retry.Do(ctx, s.policy, isSerializationError, func(attempt int) error {
		if attempt > 1 {
			s.log.Debug("retrying serializable transaction", "attempt", attempt)
		}
		return s.runTx(ctx, fn)
	})
	if errors.Is(err, retry.ErrExhausted) {
		s.log.Warn("transaction conflict retries exhausted", "error", err)
		return fmt.Errorf("%w: %w", game.ErrTxConflict, err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	pgTx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer pgTx.Rollback(ctx)

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

// ReadTx runs fn in a read-only repeatable-read snapshot. It takes no row
// locks, so it never conflicts with concurrent writers.
func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	pgTx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer pgTx.Rollback(ctx)

	if err := fn(ctx, &tx{tx: pgTx, readOnly: true}); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

func (s *Store) ResetStaleDailyCounters(ctx context.Context, day time.Time) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE economy.accounts
		SET daily_gold_ads = 0, daily_shield_ads = 0, daily_old_sword_ads = 0, counters_day = $1
		WHERE counters_day < $1
	`, day)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

type tx struct {
	tx       pgx.Tx
	readOnly bool
}

// lock is the row-lock clause for reads that feed a later write. Read-only
// transactions take no locks.
func (t *tx) lock() string {
	if t.readOnly {
		return ""
	}
	return "FOR UPDATE"
}
