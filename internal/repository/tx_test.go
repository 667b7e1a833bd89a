package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManagerRetriesSerializationFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	m := NewTxManager(db, 3, nil)
	m.backoff = 0

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := m.Do(context.Background(), func(VotingStore) error {
		attempts++
		if attempts == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerDoesNotRetryDomainErrors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	m := NewTxManager(db, 3, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	attempts := 0
	err := m.Do(context.Background(), func(VotingStore) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerGivesUpAfterMaxRetries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	m := NewTxManager(db, 2, nil)
	m.backoff = 0

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err := m.Do(context.Background(), func(VotingStore) error {
		return &pq.Error{Code: "40P01"}
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerLeavesDuplicateVoteToCaller(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	m := NewTxManager(db, 3, nil)
	m.backoff = 0

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := m.Do(context.Background(), func(VotingStore) error {
		attempts++
		return ErrDuplicateVote
	})
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, 1, attempts)
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
