package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	issued := time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"30 days":  time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC),
		"1 day":    time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC),
		"2 Weeks":  time.Date(2024, time.February, 14, 10, 0, 0, 0, time.UTC),
		"1 year":   time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC),
		"72h":      time.Date(2024, time.February, 3, 10, 0, 0, 0, time.UTC),
		" 15 days": time.Date(2024, time.February, 15, 10, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		term, err := ParseTerm(in)
		require.NoError(t, err, in)
		require.Equal(t, want, term.AddTo(issued), in)
	}
}

func TestParseTermRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "soon", "x days", "3 fortnights", "-1 days", "-5h"} {
		_, err := ParseTerm(in)
		require.ErrorIs(t, err, ErrInvalidTerm, in)
	}
	def := Term{Days: 30}
	require.Equal(t, def, ParseTermOr("whenever", def))
	require.Equal(t, Term{Months: 1}, ParseTermOr("1 month", def))
	require.True(t, Term{}.IsZero())
}
