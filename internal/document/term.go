package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTerm is returned for duration strings that cannot be parsed.
var ErrInvalidTerm = errors.New("invalid term")

// Term is a calendar offset such as "30 days" or "2 months".
type Term struct {
	Years, Months, Days int
	Duration            time.Duration
}

// ParseTerm accepts "<n> day(s)|week(s)|month(s)|year(s)" and Go duration strings like "72h".
func ParseTerm(s string) (Term, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Term{}, fmt.Errorf("%w: empty", ErrInvalidTerm)
	}
	fields := strings.Fields(s)
	if len(fields) == 2 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			return Term{}, fmt.Errorf("%w: %q", ErrInvalidTerm, s)
		}
		switch strings.TrimSuffix(fields[1], "s") {
		case "day":
			return Term{Days: n}, nil
		case "week":
			return Term{Days: 7 * n}, nil
		case "month":
			return Term{Months: n}, nil
		case "year":
			return Term{Years: n}, nil
		}
		return Term{}, fmt.Errorf("%w: unit %q", ErrInvalidTerm, fields[1])
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return Term{}, fmt.Errorf("%w: %q", ErrInvalidTerm, s)
	}
	return Term{Duration: d}, nil
}

// ParseTermOr parses s and falls back to def when s is empty or invalid.
func ParseTermOr(s string, def Term) Term {
	t, err := ParseTerm(s)
	if err != nil {
		return def
	}
	return t
}

// AddTo applies the term to t.
func (t Term) AddTo(from time.Time) time.Time {
	return from.AddDate(t.Years, t.Months, t.Days).Add(t.Duration)
}

// IsZero reports whether the term adds nothing.
func (t Term) IsZero() bool { return t == Term{} }
