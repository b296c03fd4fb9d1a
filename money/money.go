package money

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	gomoney "github.com/Rhymond/go-money"
)

// ErrNoConverter is returned when a conversion is needed but no Converter was given.
var ErrNoConverter = errors.New("no converter available")

// Converter resolves the rate that turns one unit of from into to, as of at.
// The exchange graph is the production implementation.
type Converter interface {
	Resolve(from, to string, at time.Time) (Decimal, error)
}

// Money is a possibly multi-currency value attached to a point in time.
// A currency that is absent from the value counts as zero. The zero Money is a
// valid, empty value.
type Money struct {
	amounts map[string]Decimal
	// precision holds the number of fractional digits seen on input per currency.
	precision map[string]int

	// Home is the currency bare numbers are expressed in.
	Home string
	// AsOf is the time the value refers to.
	AsOf time.Time
}

// New returns a single-currency Money.
func New(amount Decimal, currency string) Money {
	m := Money{}
	return m.with(currency, amount)
}

// WithHome returns a copy of m with the given home currency.
func (m Money) WithHome(home string) Money {
	m.Home = home
	return m
}

// WithAsOf returns a copy of m attached to t.
func (m Money) WithAsOf(t time.Time) Money {
	m.AsOf = t
	return m
}

// WithPrecision returns a copy of m that records places fractional digits for
// currency. The recorded precision only ever grows.
func (m Money) WithPrecision(currency string, places int) Money {
	out := m.clone()
	if places > out.precision[currency] {
		out.precision[currency] = places
	}
	return out
}

func (m Money) clone() Money {
	out := Money{
		amounts:   make(map[string]Decimal, len(m.amounts)),
		precision: make(map[string]int, len(m.precision)),
		Home:      m.Home,
		AsOf:      m.AsOf,
	}
	for c, a := range m.amounts {
		out.amounts[c] = a
	}
	for c, p := range m.precision {
		out.precision[c] = p
	}
	return out
}

// with returns a copy of m with amount added to currency. Zero results are pruned.
func (m Money) with(currency string, amount Decimal) Money {
	out := m.clone()
	sum := out.amounts[currency].Add(amount)
	if sum.IsZero() {
		delete(out.amounts, currency)
	} else {
		out.amounts[currency] = sum
	}
	return out
}

// Plus returns m + o. Home currency and time are taken from m unless unset.
func (m Money) Plus(o Money) Money {
	out := m.clone()
	if out.Home == "" {
		out.Home = o.Home
	}
	if out.AsOf.IsZero() {
		out.AsOf = o.AsOf
	}
	for c, a := range o.amounts {
		sum := out.amounts[c].Add(a)
		if sum.IsZero() {
			delete(out.amounts, c)
		} else {
			out.amounts[c] = sum
		}
	}
	for c, p := range o.precision {
		if p > out.precision[c] {
			out.precision[c] = p
		}
	}
	return out
}

// Minus returns m - o.
func (m Money) Minus(o Money) Money {
	return m.Plus(o.Neg())
}

// Neg returns -m.
func (m Money) Neg() Money {
	out := m.clone()
	for c, a := range out.amounts {
		out.amounts[c] = a.Neg()
	}
	return out
}

// Times scales every amount of m by f.
func (m Money) Times(f Decimal) Money {
	out := m.clone()
	for c, a := range out.amounts {
		p := a.Mul(f)
		if p.IsZero() {
			delete(out.amounts, c)
			continue
		}
		out.amounts[c] = p
	}
	return out
}

// Div divides every amount of m by f.
func (m Money) Div(f Decimal) (Money, error) {
	if f.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	out := m.clone()
	for c, a := range out.amounts {
		q, err := a.Div(f)
		if err != nil {
			return Money{}, err
		}
		if q.IsZero() {
			delete(out.amounts, c)
			continue
		}
		out.amounts[c] = q
	}
	return out, nil
}

// IsZero reports whether every currency amount is zero.
func (m Money) IsZero() bool {
	for _, a := range m.amounts {
		if !a.IsZero() {
			return false
		}
	}
	return true
}

// Len returns the number of non-zero currencies.
func (m Money) Len() int {
	return len(m.amounts)
}

// Currencies returns the non-zero currencies of m in sorted order.
func (m Money) Currencies() []string {
	out := make([]string, 0, len(m.amounts))
	for c := range m.amounts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Amount returns the amount held in currency, or zero.
func (m Money) Amount(currency string) Decimal {
	return m.amounts[currency]
}

// Equal reports whether m and o hold exactly the same amounts.
func (m Money) Equal(o Money) bool {
	if len(m.amounts) != len(o.amounts) {
		return false
	}
	for c, a := range m.amounts {
		if !a.Equal(o.amounts[c]) {
			return false
		}
	}
	return true
}

// InputPrecision returns the number of fractional digits seen on input for
// currency, and whether any input was seen at all.
func (m Money) InputPrecision(currency string) (int, bool) {
	p, ok := m.precision[currency]
	return p, ok
}

// Precision returns the number of fractional digits currency should be shown
// with: the larger of the input precision and the currency's default.
func (m Money) Precision(currency string) int {
	p := DefaultPrecision(currency)
	if in, ok := m.precision[currency]; ok && in > p {
		p = in
	}
	return p
}

// DefaultPrecision returns the number of minor-unit digits of an ISO 4217
// currency, or DisplayScale for anything else.
func DefaultPrecision(currency string) int {
	if c := gomoney.GetCurrency(strings.ToUpper(currency)); c != nil && len(currency) == 3 {
		return c.Fraction
	}
	return DisplayScale
}

// Round rounds each currency amount to places fractional digits. A negative
// places rounds each currency to its own Precision.
func (m Money) Round(places int) Money {
	out := m.clone()
	for c, a := range out.amounts {
		p := places
		if p < 0 {
			p = m.Precision(c)
		}
		r := a.Round(p)
		if r.IsZero() {
			delete(out.amounts, c)
			continue
		}
		out.amounts[c] = r
	}
	return out
}

// Convert expresses m entirely in target, converting each currency at time at.
// The result carries the precision of m's target amount, if any.
func (m Money) Convert(c Converter, target string, at time.Time) (Money, error) {
	out := Money{Home: m.Home, AsOf: at}
	if p, ok := m.precision[target]; ok {
		out = out.WithPrecision(target, p)
	}

	for _, cur := range m.Currencies() {
		amount := m.amounts[cur]
		if cur == target {
			out = out.with(target, amount)
			continue
		}
		if c == nil {
			return Money{}, fmt.Errorf("convert %s to %s: %w", cur, target, ErrNoConverter)
		}
		rate, err := c.Resolve(cur, target, at)
		if err != nil {
			return Money{}, err
		}
		out = out.with(target, amount.Mul(rate))
	}

	return out, nil
}

// Compare orders m against o. When the difference spans several currencies it
// is converted into a currency of o (or m) as of m's time. The second result
// is false when no ordering could be established; callers treat that as
// neither equal nor ordered.
func (m Money) Compare(o Money, c Converter) (int, bool) {
	diff := m.Minus(o)
	currencies := diff.Currencies()
	switch len(currencies) {
	case 0:
		return 0, true
	case 1:
		return diff.amounts[currencies[0]].Sign(), true
	}

	if c == nil {
		return 0, false
	}

	target := ""
	if cs := o.Currencies(); len(cs) > 0 {
		target = cs[0]
	} else {
		target = m.Currencies()[0]
	}

	at := m.AsOf
	if at.IsZero() {
		at = o.AsOf
	}

	converted, err := diff.Convert(c, target, at)
	if err != nil {
		return 0, false
	}
	return converted.Amount(target).Sign(), true
}

// String serializes m as comma-separated amounts in sorted currency order.
// Amounts in the home currency are written as bare numbers; every amount keeps
// at least its precision worth of fractional digits and never loses digits.
func (m Money) String() string {
	if len(m.amounts) == 0 {
		return "0"
	}

	currencies := m.Currencies()
	parts := make([]string, 0, len(currencies))
	for _, c := range currencies {
		parts = append(parts, m.formatAmount(c))
	}
	return strings.Join(parts, ", ")
}

func (m Money) formatAmount(currency string) string {
	amount := m.amounts[currency]
	places := m.Precision(currency)
	if p := amount.Places(); p > places {
		places = p
	}
	number := amount.StringFixed(places)

	switch {
	case currency == m.Home:
		return number
	case isSymbol(currency):
		if amount.IsNegative() {
			return "-" + currency + strings.TrimPrefix(number, "-")
		}
		return currency + number
	default:
		return number + " " + currency
	}
}

// isSymbol reports whether currency is a single non-letter rune such as "$".
func isSymbol(currency string) bool {
	r, size := utf8.DecodeRuneInString(currency)
	return size == len(currency) && !unicode.IsLetter(r)
}

// MarshalText implements encoding.TextMarshaler.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, keeping m's home currency
// and time.
func (m *Money) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text), m.Home, m.AsOf)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
