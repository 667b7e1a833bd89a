package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrDuplicateVote reports a unique violation on (voter, target). The
// enclosing transaction is unusable afterwards; callers retry the whole unit.
var ErrDuplicateVote = errors.New("duplicate vote")

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// TxManager runs units of work in SERIALIZABLE transactions and retries them
// on serialization failures and deadlocks.
type TxManager struct {
	db         *sqlx.DB
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB, maxRetries int, logger *zap.Logger) *TxManager {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxManager{db: db, maxRetries: maxRetries, backoff: 10 * time.Millisecond, logger: logger}
}

// Do executes fn inside a transaction, committing when it returns nil.
func (m *TxManager) Do(ctx context.Context, fn func(VotingStore) error) error {
	var err error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		err = m.once(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		m.logger.Debug("retrying serializable transaction", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func (m *TxManager) once(ctx context.Context, fn func(VotingStore) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newVotingStore(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	code := sqlState(err)
	return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
