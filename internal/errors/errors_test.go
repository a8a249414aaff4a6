package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimingErrorMessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("bad token at column 7")
	err := ParseFailed("J0613.par", 12, cause)

	require.Contains(t, err.Error(), "parse")
	require.Contains(t, err.Error(), "bad token at column 7")
	require.ErrorIs(t, err, cause)
}

func TestIsCategoryUnwraps(t *testing.T) {
	inner := ValidationFailed("value", "not finite")
	wrapped := fmt.Errorf("applying request: %w", inner)

	require.True(t, IsCategory(wrapped, CategoryValidation))
	require.False(t, IsCategory(wrapped, CategoryFit))
	require.Equal(t, CategoryValidation, GetCategory(wrapped))
}

func TestGetCategoryDefaultsToInternal(t *testing.T) {
	require.Equal(t, CategoryInternal, GetCategory(fmt.Errorf("plain")))
}

func TestWithContext(t *testing.T) {
	err := StaleReference(1, 3)
	require.Equal(t, uint64(1), err.Context["bound_generation"])
	require.Equal(t, uint64(3), err.Context["live_generation"])
}
