package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderRef(t *testing.T) {
	ref, err := ParseOrderRef("subscription", 42)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionRef{ID: 42}, ref)
	assert.Equal(t, "subscription:42", FormatOrderRef(ref))

	ref, err = ParseOrderRef(" Cart ", 7)
	require.NoError(t, err)
	assert.Equal(t, OrderKindCart, ref.Kind())
	assert.Equal(t, int64(7), ref.OrderID())
}

func TestParseOrderRefRejectsUnknown(t *testing.T) {
	_, err := ParseOrderRef("booking", 1)
	assert.True(t, errors.Is(err, ErrInvalidOrderRef))

	_, err = ParseOrderRef("subscription", 0)
	assert.True(t, errors.Is(err, ErrInvalidOrderRef))
}
