// Package quant provides the fixed-point numeric types used on the hot path.
//
// Prices are carried as Decimal, an 8-decimal fixed-point value in a signed
// 64-bit integer. Using the raw integer as an ordered-map key means two quotes
// of "the same" price always land on the same book level, which float64 keys
// cannot guarantee.
package quant

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Scale is the fixed-point scale factor: 10^8, matching Binance precision
// for most pairs.
const Scale int64 = 100_000_000

const decimals = 8

// Decimal is an 8-decimal fixed-point value.
// E.g., 42150.50 is stored as 4_215_050_000_000.
// Ordering and equality of the underlying integer match numeric ordering
// and equality, so Decimal can be compared with <, ==, > directly and used
// as a map key.
type Decimal int64

var (
	// ErrInvalidFormat is returned by Parse for malformed numeric literals.
	ErrInvalidFormat = errors.New("invalid decimal format")

	// ErrOverflow is returned by Parse when the integer part does not fit.
	ErrOverflow = errors.New("decimal overflow")
)

// FromRaw builds a Decimal from its raw scaled integer representation.
func FromRaw(raw int64) Decimal {
	return Decimal(raw)
}

// FromInt converts a whole number to a Decimal.
func FromInt(i int64) Decimal {
	return Decimal(i * Scale)
}

// FromFloat converts a float64 to a Decimal, rounding to the nearest
// representable value. Only for boundary conversion; internal logic should
// stay in Decimal.
func FromFloat(f float64) Decimal {
	return Decimal(math.Round(f * float64(Scale)))
}

// Parse converts a decimal string literal to a Decimal.
//
// Accepted: optional leading sign, digits, at most one '.', more digits.
// Fractional digits beyond 8 are truncated, not rounded. The empty string
// parses to zero. Multiple decimal points, stray characters, or a bare sign
// return ErrInvalidFormat; an integer part too large for int64 returns
// ErrOverflow.
func Parse(s string) (Decimal, error) {
	if s == "" {
		return 0, nil
	}

	negative := false
	pos := 0
	switch s[0] {
	case '-':
		negative = true
		pos = 1
	case '+':
		pos = 1
	}
	if pos >= len(s) {
		return 0, ErrInvalidFormat
	}

	var intPart, fracPart int64
	fracDigits := 0
	inFraction := false
	hasDigits := false

	for ; pos < len(s); pos++ {
		c := s[pos]
		if c == '.' {
			if inFraction {
				return 0, ErrInvalidFormat
			}
			inFraction = true
			continue
		}
		if c < '0' || c > '9' {
			return 0, ErrInvalidFormat
		}
		hasDigits = true
		digit := int64(c - '0')
		if inFraction {
			if fracDigits < decimals {
				fracPart = fracPart*10 + digit
				fracDigits++
			}
			// Digits beyond the scale are truncated.
		} else {
			if intPart > (math.MaxInt64-digit)/10 {
				return 0, ErrOverflow
			}
			intPart = intPart*10 + digit
		}
	}
	if !hasDigits {
		return 0, ErrInvalidFormat
	}

	for fracDigits < decimals {
		fracPart *= 10
		fracDigits++
	}

	if intPart > math.MaxInt64/Scale {
		return 0, ErrOverflow
	}
	raw := intPart * Scale
	if fracPart > math.MaxInt64-raw {
		return 0, ErrOverflow
	}
	raw += fracPart

	if negative {
		raw = -raw
	}
	return Decimal(raw), nil
}

// MustParse is Parse for literals known to be well formed. It panics on
// error and is intended for tests and constants.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic("quant: " + err.Error() + ": " + strconv.Quote(s))
	}
	return d
}

// Raw returns the underlying scaled integer.
func (d Decimal) Raw() int64 {
	return int64(d)
}

// Float64 converts to float64 for display and metric math.
func (d Decimal) Float64() float64 {
	return float64(d) / float64(Scale)
}

// String renders the canonical form: no leading zeros on the integer part,
// trailing fractional zeros stripped, the fraction omitted entirely when
// zero, and a '-' prefix for negative values.
func (d Decimal) String() string {
	if d == 0 {
		return "0"
	}

	raw := int64(d)
	negative := raw < 0
	if negative {
		raw = -raw
	}

	intPart := raw / Scale
	fracPart := raw % Scale

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(intPart, 10))

	if fracPart > 0 {
		frac := strconv.FormatInt(fracPart, 10)
		for len(frac) < decimals {
			frac = "0" + frac
		}
		frac = strings.TrimRight(frac, "0")
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	return d + other
}

// Sub returns d - other.
func (d Decimal) Sub(other Decimal) Decimal {
	return d - other
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return -d
}

// Mul returns (d * other) / Scale, rounded to nearest (half away from zero).
// The intermediate product is computed in float64, which holds full precision
// for typical crypto price ranges (up to ~1M with 8 decimals).
func (d Decimal) Mul(other Decimal) Decimal {
	result := float64(d) * float64(other) / float64(Scale)
	return Decimal(math.Round(result))
}

// Div returns (d * Scale) / other, rounded to nearest. Division by zero
// returns zero; metric code prefers a defined zero over a fault. Callers
// that must reject a zero divisor use DivChecked.
func (d Decimal) Div(other Decimal) Decimal {
	if other == 0 {
		return 0
	}
	result := float64(d) * float64(Scale) / float64(other)
	return Decimal(math.Round(result))
}

// DivChecked is Div with an explicit ok flag; ok is false when other is zero.
func (d Decimal) DivChecked(other Decimal) (Decimal, bool) {
	if other == 0 {
		return 0, false
	}
	return d.Div(other), true
}

// Abs returns the absolute value.
func (d Decimal) Abs() Decimal {
	if d < 0 {
		return -d
	}
	return d
}

// IsZero reports whether d == 0.
func (d Decimal) IsZero() bool {
	return d == 0
}

// IsPositive reports whether d > 0.
func (d Decimal) IsPositive() bool {
	return d > 0
}

// IsNegative reports whether d < 0.
func (d Decimal) IsNegative() bool {
	return d < 0
}

// One is the Decimal value 1.
const One Decimal = Decimal(Scale)
