// Package money provides the exact arithmetic types of the ledger: a fixed-point
// Decimal and a multi-currency Money value.
//
// Decimal wraps shopspring/decimal and re-expresses every result at Scale
// fractional digits. Multiplication and division are computed at doubled
// precision and rounded half away from zero, so repeated aggregation and
// conversion across a report never accumulates visible error at the display
// precision.
//
// Money maps currency codes to Decimal amounts. It is a value type: every
// arithmetic operation returns a new Money and never mutates its receiver.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Decimal is kept at.
const Scale = 10

// DisplayScale is the default number of fractional digits shown for a currency
// the ledger knows nothing about.
const DisplayScale = 2

var (
	// ErrInvalidAmount is wrapped by every error caused by a malformed numeric literal.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDivisionByZero is returned when dividing by a zero Decimal.
	ErrDivisionByZero = errors.New("division by zero")
)

// InvalidAmountError is returned when a numeric literal or amount expression
// cannot be parsed.
type InvalidAmountError struct {
	Text   string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid amount %q", e.Text)
	}
	return fmt.Sprintf("invalid amount %q: %s", e.Text, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// numberRegex accepts an optional sign, digits and an optional fraction.
// Exponents, thousands separators and NaN/Inf spellings are rejected.
var numberRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// Decimal is an immutable fixed-point number kept at Scale fractional digits.
// The zero value is 0.
type Decimal struct {
	v decimal.Decimal
}

// Zero is the zero Decimal.
var Zero = Decimal{}

// One is the Decimal 1.
var One = NewDecimalFromInt(1)

// ParseDecimal parses a plain numeric literal such as "12", "-3.50" or ".5".
// Digits beyond Scale are rounded half away from zero.
func ParseDecimal(text string) (Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Zero, &InvalidAmountError{Text: text, Reason: "empty"}
	}
	if !numberRegex.MatchString(s) {
		return Zero, &InvalidAmountError{Text: text, Reason: "not a number"}
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return Zero, &InvalidAmountError{Text: text, Reason: err.Error()}
	}

	return Decimal{v: d.Round(Scale)}, nil
}

// MustParseDecimal parses text and panics on error.
// Use only in tests or for constants known to be valid.
func MustParseDecimal(text string) Decimal {
	d, err := ParseDecimal(text)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDecimalFromInt returns the Decimal value of i.
func NewDecimalFromInt(i int64) Decimal {
	return Decimal{v: decimal.NewFromInt(i)}
}

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	return Decimal{v: d.v.Add(o.v)}
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal {
	return Decimal{v: d.v.Sub(o.v)}
}

// Mul returns d * o rounded to Scale.
func (d Decimal) Mul(o Decimal) Decimal {
	return Decimal{v: d.v.Mul(o.v).Round(Scale)}
}

// Div returns d / o. The quotient is computed at twice Scale and then rounded
// to Scale, half away from zero.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.v.IsZero() {
		return Zero, ErrDivisionByZero
	}
	return Decimal{v: d.v.DivRound(o.v, 2*Scale).Round(Scale)}, nil
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{v: d.v.Neg()}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{v: d.v.Abs()}
}

// Round rounds d to places fractional digits, half away from zero.
// Places above Scale are clamped to Scale.
func (d Decimal) Round(places int) Decimal {
	if places > Scale {
		places = Scale
	}
	return Decimal{v: d.v.Round(int32(places))}
}

// Cmp returns -1, 0 or 1 when d is less than, equal to or greater than o.
func (d Decimal) Cmp(o Decimal) int {
	return d.v.Cmp(o.v)
}

// Equal reports whether d and o are the same number.
func (d Decimal) Equal(o Decimal) bool {
	return d.v.Equal(o.v)
}

// LessThan reports whether d < o.
func (d Decimal) LessThan(o Decimal) bool {
	return d.v.LessThan(o.v)
}

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int {
	return d.v.Sign()
}

// IsZero reports whether d is zero.
func (d Decimal) IsZero() bool {
	return d.v.IsZero()
}

// IsNegative reports whether d < 0.
func (d Decimal) IsNegative() bool {
	return d.v.IsNegative()
}

// Places returns the number of significant fractional digits of d.
func (d Decimal) Places() int {
	s := d.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}

// String returns the canonical form: no exponent, trailing fractional zeros
// trimmed, sign kept.
func (d Decimal) String() string {
	return d.v.String()
}

// StringFixed formats d with exactly places fractional digits.
func (d Decimal) StringFixed(places int) string {
	return d.v.StringFixed(int32(places))
}

// MarshalText implements encoding.TextMarshaler.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	parsed, err := ParseDecimal(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
