package common

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// LenientNumber accepts a JSON number or a numeric string. Anything else
// decodes without error and leaves the value unset, so form input such as
// "" or "abc" falls back to a caller supplied default.
type LenientNumber struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *LenientNumber) UnmarshalJSON(data []byte) error {
	*n = LenientNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n LenientNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// FloatOr returns the parsed value or def when unset.
func (n LenientNumber) FloatOr(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

// IntOr returns the parsed value truncated to an int, or def when unset or not a whole number.
func (n LenientNumber) IntOr(def int) int {
	if !n.Valid || n.Value != math.Trunc(n.Value) {
		return def
	}
	return int(n.Value)
}

// Num is a convenience constructor for a set LenientNumber.
func Num(v float64) LenientNumber {
	return LenientNumber{Value: v, Valid: true}
}
