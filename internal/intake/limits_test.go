package intake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBatchLimits_DefaultsOnNonPositive(t *testing.T) {
	require.Equal(t, DefaultBatchLimits(), NewBatchLimits(0))
	require.Equal(t, DefaultBatchLimits(), NewBatchLimits(-5))
	require.Equal(t, BatchLimits{MaxItems: 100}, NewBatchLimits(100))
}

func TestValidateItemCount(t *testing.T) {
	limits := NewBatchLimits(3)

	require.ErrorIs(t, limits.ValidateItemCount(0), ErrEmptyBatch)
	require.NoError(t, limits.ValidateItemCount(1))
	require.NoError(t, limits.ValidateItemCount(3))
	require.ErrorIs(t, limits.ValidateItemCount(4), ErrTooManyItems)
}
