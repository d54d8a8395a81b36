package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"matrix-commission-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	t.Run("Wrapped errors keep their kind", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", domain.NotFound("GetUser", "user %d not found", 7))
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.False(t, errors.Is(err, domain.ErrValidation))
		assert.Equal(t, "outer: GetUser: user 7 not found", err.Error())
	})

	t.Run("Conflict is retryable and unwraps its cause", func(t *testing.T) {
		cause := errors.New("serialization failure")
		err := domain.Conflict("PlaceUser", cause)
		assert.True(t, domain.IsRetryable(err))
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, "PlaceUser: concurrency conflict: serialization failure", err.Error())
	})

	t.Run("Structural is not retryable", func(t *testing.T) {
		err := domain.Structural("PlaceUser", "node %d has %d children", 1, 4)
		assert.False(t, domain.IsRetryable(err))
		assert.True(t, errors.Is(err, domain.ErrStructuralInvariant))
	})
}

func TestParseEntryType(t *testing.T) {
	typ, err := domain.ParseEntryType("sponsor_commission")
	assert.NoError(t, err)
	assert.Equal(t, domain.EntryTypeSponsorCommission, typ)

	_, err = domain.ParseEntryType("bonus")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
