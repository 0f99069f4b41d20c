package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quantity is a unit count. Decoding is lenient: numbers, numeric strings,
// null and anything unparsable are accepted, the latter two as 0.
type Quantity int

// maxQuantity bounds decoded quantities; anything larger reads as 0
var maxQuantity = decimal.NewFromInt(math.MaxInt32)

// UnmarshalJSON implements json.Unmarshaler
func (q *Quantity) UnmarshalJSON(data []byte) error {
	d := parseLenient(data)
	if d.Abs().GreaterThan(maxQuantity) {
		*q = 0
		return nil
	}
	*q = Quantity(d.IntPart())
	return nil
}

// Int returns the quantity as an int
func (q Quantity) Int() int {
	return int(q)
}

// Timestamp is a creation time in Unix milliseconds. Decoding accepts
// numbers, numeric strings and RFC 3339 or YYYY-MM-DD strings; anything
// else reads as 0.
type Timestamp int64

// NewTimestamp converts t to Unix milliseconds
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time returns the instant, the zero time for 0
func (ts Timestamp) Time() time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ts))
}

var maxTimestamp = decimal.NewFromInt(math.MaxInt64)

// UnmarshalJSON implements json.Unmarshaler
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		if d, err := decimal.NewFromString(string(data)); err == nil && !d.Abs().GreaterThan(maxTimestamp) {
			*ts = Timestamp(d.IntPart())
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(s); err == nil {
		if !d.Abs().GreaterThan(maxTimestamp) {
			*ts = Timestamp(d.IntPart())
		}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			*ts = NewTimestamp(t)
			return nil
		}
	}
	return nil
}

// Money is a price stored as a JSON number
type Money struct {
	decimal.Decimal
}

// NewMoney builds a Money from a float, for fixtures and tests
func NewMoney(v float64) Money {
	return Money{decimal.NewFromFloat(v)}
}

// MarshalJSON writes the amount as a bare number
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON is lenient like Quantity
func (m *Money) UnmarshalJSON(data []byte) error {
	m.Decimal = parseLenient(data)
	return nil
}

func parseLenient(data []byte) decimal.Decimal {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return decimal.Zero
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Zero
		}
		raw = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	}

	if d, err := decimal.NewFromString(raw); err == nil {
		return d
	}
	// leading digits, like parseInt("12 boîtes")
	end := 0
	for end < len(raw) && (raw[end] >= '0' && raw[end] <= '9' || end == 0 && raw[end] == '-') {
		end++
	}
	if n, err := strconv.Atoi(raw[:end]); err == nil {
		return decimal.NewFromInt(int64(n))
	}
	return decimal.Zero
}
