package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeAndMatchesTemplate(t *testing.T) {
	err := Clone(ErrCapacityExhausted, "wait a bit")

	assert.Equal(t, "wait a bit", err.Message)
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.True(t, errors.Is(err, ErrCapacityExhausted))
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, "no votes available, wait for regeneration", ErrCapacityExhausted.Message)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := FromError(cause)

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, FromError(nil))
}

func TestFromErrorFindsWrappedTypedError(t *testing.T) {
	wrapped := fmt.Errorf("cast vote: %w", Clone(ErrSelfVote, ""))
	err := FromError(wrapped)

	assert.Equal(t, "SELF_VOTE_FORBIDDEN", err.Code)
	assert.Equal(t, http.StatusForbidden, err.Status)
}
