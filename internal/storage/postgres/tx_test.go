package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errorClass
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, classRetryable},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, classRetryable},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, classRetryable},
		{"wrapped deadlock", errors.Wrap(&pgconn.PgError{Code: "40P01"}, "insert"), classRetryable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, classPermanent},
		{"plain error", errors.New("boom"), classPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

// fakeTx only implements what pgx.BeginTxFunc calls.
type fakeTx struct {
	pgx.Tx
	commits   *int
	rollbacks *int
}

func (f fakeTx) Commit(context.Context) error {
	*f.commits++
	return nil
}

func (f fakeTx) Rollback(context.Context) error {
	*f.rollbacks++
	return nil
}

type fakeBeginner struct {
	begins    int
	commits   int
	rollbacks int
}

func (f *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	f.begins++
	return fakeTx{commits: &f.commits, rollbacks: &f.rollbacks}, nil
}

func testOpts() TxOptions {
	return TxOptions{IsoLevel: pgx.ReadCommitted, MaxRetries: 3, InitialInterval: time.Millisecond}
}

func TestInTx_RetriesTransientErrors(t *testing.T) {
	db := &fakeBeginner{}
	calls := 0
	err := InTx(context.Background(), db, testOpts(), func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: codeSerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, db.begins)
	assert.Equal(t, 1, db.commits)
	assert.GreaterOrEqual(t, db.rollbacks, 2)
}

func TestInTx_PermanentErrorNotRetried(t *testing.T) {
	db := &fakeBeginner{}
	boom := errors.New("boom")
	calls := 0
	err := InTx(context.Background(), db, testOpts(), func(pgx.Tx) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Zero(t, db.commits)
}

func TestInTx_GivesUp(t *testing.T) {
	db := &fakeBeginner{}
	calls := 0
	err := InTx(context.Background(), db, testOpts(), func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: codeDeadlockDetected}
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, codeDeadlockDetected, pgErr.Code)
}
