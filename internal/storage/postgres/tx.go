package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// SQLSTATE codes of transient transaction failures.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

type errorClass int

const (
	classPermanent errorClass = iota
	classRetryable
)

func classify(err error) errorClass {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return classPermanent
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return classRetryable
	default:
		return classPermanent
	}
}

// TxOptions controls transaction isolation and retries.
type TxOptions struct {
	IsoLevel        pgx.TxIsoLevel
	MaxRetries      uint64
	InitialInterval time.Duration
}

// DefaultTxOptions returns read committed with three retries.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsoLevel:        pgx.ReadCommitted,
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
	}
}

type beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// InTx runs fn in a transaction, retrying with exponential backoff when
// the transaction fails with a serialization failure, deadlock or lock
// timeout. Other errors are returned as is after rollback.
func InTx(ctx context.Context, db beginner, opts TxOptions, fn func(tx pgx.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := pgx.BeginTxFunc(ctx, db, pgx.TxOptions{IsoLevel: opts.IsoLevel}, fn)
		if err == nil {
			return nil
		}
		if classify(err) == classPermanent {
			return backoff.Permanent(err)
		}
		zctx.From(ctx).Debug("Retrying transaction",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}

	b := backoff.NewExponentialBackOff()
	if opts.InitialInterval > 0 {
		b.InitialInterval = opts.InitialInterval
	}
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, opts.MaxRetries), ctx)); err != nil {
		if classify(err) == classRetryable {
			return errors.Wrapf(err, "transaction failed after %d attempts", attempt)
		}
		return err
	}
	return nil
}
