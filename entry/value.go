package entry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
)

// ErrReservedKey is returned when generic metadata tries to set a key that is
// part of the entry itself.
var ErrReservedKey = errors.New("reserved metadata key")

// ErrInvalidKey is returned for metadata keys that cannot be written to a
// metadata line and read back.
var ErrInvalidKey = errors.New("invalid metadata key")

// ErrInvalidValue is returned when metadata text is not a JSON null, boolean,
// number or string.
var ErrInvalidValue = errors.New("invalid metadata value")

var reservedKeys = map[string]bool{
	"time":        true,
	"description": true,
	"uuid":        true,
	"transfers":   true,
}

// IsReserved reports whether key may not be used as metadata.
func IsReserved(key string) bool {
	return reservedKeys[key]
}

// Kind is the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a metadata value: null, a boolean, an exact number or a string.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    decimal.Decimal
	s    string
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, n: d} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (decimal.Decimal, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Equal reports whether v and o hold the same variant and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n.Equal(o.n)
	case KindString:
		return v.s == o.s
	}
	return true
}

// Text returns the value as plain text, without JSON quoting. Metadata
// filters match against this form.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.n.String()
	case KindString:
		return v.s
	}
	return "null"
}

// String returns the JSON encoding of v.
func (v Value) String() string {
	b, _ := v.MarshalJSON()
	return string(b)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return []byte(v.n.String()), nil
	case KindString:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v.s); err != nil {
			return nil, err
		}
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are decoded exactly;
// arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidValue)
	}

	switch x := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		*v = Number(d)
	case string:
		*v = String(x)
	default:
		return fmt.Errorf("%w: %s is not a null, boolean, number or string", ErrInvalidValue, strings.TrimSpace(string(data)))
	}
	return nil
}

// ParseValue decodes JSON text into a Value.
func ParseValue(text string) (Value, error) {
	var v Value
	err := v.UnmarshalJSON([]byte(text))
	return v, err
}

// Metadata holds an entry's free-form key/value pairs.
type Metadata map[string]Value

// ValidKey checks that key may be used as metadata.
func ValidKey(key string) error {
	if IsReserved(key) {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	if key == "" || strings.ContainsAny(key, ":\t\n\r") || strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Set stores value under key. Reserved and malformed keys are rejected.
func (m Metadata) Set(key string, value Value) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	m[key] = value
	return nil
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Clone returns a copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
