package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	from, to, err := ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *from)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *to)

	from, to, err = ParseDateRange("", "2024-03-05T10:00:00Z")
	require.NoError(t, err)
	require.Nil(t, from)
	require.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), *to)

	_, _, err = ParseDateRange("yesterday", "")
	require.ErrorIs(t, err, ErrInvalidDate)
	_, _, err = ParseDateRange("2024-02-01", "2024-01-01")
	require.True(t, IsAppError(err))
}
