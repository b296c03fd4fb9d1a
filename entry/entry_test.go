package entry

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/robinvdvleuten/tally/exchange"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/warn"
	"github.com/shopspring/decimal"
)

func amount(s string) money.Money {
	return money.MustParse(s, "$")
}

func newTestPolicy() (*warn.Policy, *bytes.Buffer) {
	var buf bytes.Buffer
	return warn.NewPolicy(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func coffee(second string) *Entry {
	return &Entry{
		UUID:        "aaaaaaaa",
		Time:        time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "Coffee",
		Metadata:    Metadata{},
		Transfers: []Transfer{
			{Account: "Expense.Coffee", Amount: amount("3.50")},
			{Account: "Assets.Cash", Amount: amount(second)},
		},
	}
}

func TestBalanceAlreadyBalanced(t *testing.T) {
	policy, _ := newTestPolicy()
	e := coffee("-3.50")

	assert.NoError(t, e.Balance(policy, nil))
	assert.Equal(t, 2, len(e.Transfers))
	assert.True(t, e.Sum().IsZero())
	assert.Equal(t, 0, len(policy.Reported()))
}

func TestBalanceAutoFill(t *testing.T) {
	policy, _ := newTestPolicy()
	e := coffee("")

	assert.NoError(t, e.Balance(policy, nil))
	assert.Equal(t, 2, len(e.Transfers))
	assert.Equal(t, "-3.50", e.Transfers[1].Amount.String())
	assert.True(t, e.Sum().IsZero())
	assert.Equal(t, 0, len(policy.Reported()))
}

func TestBalanceAppendsImbalance(t *testing.T) {
	policy, buf := newTestPolicy()
	e := coffee("-3.00")

	assert.NoError(t, e.Balance(policy, nil))
	assert.Equal(t, 3, len(e.Transfers))
	assert.Equal(t, ImbalanceAccount, e.Transfers[2].Account)
	assert.Equal(t, "-0.50", e.Transfers[2].Amount.String())
	assert.True(t, e.Sum().IsZero())
	assert.Equal(t, 1, policy.Count(warn.ImbalancedEntries))
	assert.Contains(t, buf.String(), "uuid=aaaaaaaa")
}

func TestBalanceIgnoredImbalanceIsSilent(t *testing.T) {
	policy, buf := newTestPolicy()
	policy.Ignore(warn.ImbalancedEntries)
	e := coffee("-3.00")

	assert.NoError(t, e.Balance(policy, nil))
	assert.Equal(t, 3, len(e.Transfers))
	assert.Equal(t, 0, len(policy.Reported()))
	assert.Equal(t, "", buf.String())
}

func TestBalanceStrict(t *testing.T) {
	policy, _ := newTestPolicy()
	policy.Strict = true
	e := coffee("-3.00")

	err := e.Balance(policy, nil)
	assert.IsError(t, err, ErrImbalancedEntry)
	assert.Equal(t, 2, len(e.Transfers))

	var imbalanced *ImbalancedEntryError
	assert.True(t, errors.As(err, &imbalanced))
	assert.Equal(t, "0.50", imbalanced.Residual.String())

	// Strict mode still fills a blank transfer.
	blank := coffee("")
	assert.NoError(t, blank.Balance(policy, nil))
	assert.Equal(t, "-3.50", blank.Transfers[1].Amount.String())
}

func eurUSD(t *testing.T) *exchange.Graph {
	t.Helper()
	g := exchange.NewGraph()
	assert.NoError(t, g.AddRate("EUR", "USD", money.MustParseDecimal("1.18"), time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	return g
}

func exchangeEntry(usd string) *Entry {
	return &Entry{
		UUID: "bbbbbbbb",
		Time: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		Transfers: []Transfer{
			{Account: "Assets.EUR", Amount: amount("100 EUR")},
			{Account: "Assets.USD", Amount: amount(usd)},
		},
	}
}

func TestBalanceExchangeAtRate(t *testing.T) {
	policy, _ := newTestPolicy()
	e := exchangeEntry("-118 USD")

	assert.NoError(t, e.Balance(policy, eurUSD(t)))
	assert.Equal(t, 2, len(e.Transfers))
	assert.Equal(t, 0, len(policy.Reported()))
}

func TestBalanceExchangeOffRate(t *testing.T) {
	policy, _ := newTestPolicy()
	e := exchangeEntry("-0.01 USD")

	assert.NoError(t, e.Balance(policy, eurUSD(t)))
	assert.Equal(t, 3, len(e.Transfers))
	assert.Equal(t, ImbalanceAccount, e.Transfers[2].Account)
	assert.Equal(t, "-100.00 EUR, 0.01 USD", e.Transfers[2].Amount.String())
	assert.True(t, e.Sum().IsZero())
	assert.Equal(t, 1, policy.Count(warn.ImbalancedEntries))
}

func TestBalanceExchangeWithoutRates(t *testing.T) {
	tests := []struct {
		name string
		conv money.Converter
	}{
		{"no converter", nil},
		{"no path", exchange.NewGraph()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, _ := newTestPolicy()
			e := exchangeEntry("-118 USD")

			assert.NoError(t, e.Balance(policy, tt.conv))
			assert.Equal(t, 3, len(e.Transfers))
			assert.Equal(t, ImbalanceAccount, e.Transfers[2].Account)
			assert.Equal(t, 1, policy.Count(warn.ImbalancedEntries))
		})
	}
}

func TestBalanceExchangeStrict(t *testing.T) {
	policy, _ := newTestPolicy()
	policy.Strict = true
	e := exchangeEntry("-0.01 USD")

	err := e.Balance(policy, eurUSD(t))
	assert.IsError(t, err, ErrImbalancedEntry)
	assert.Equal(t, 2, len(e.Transfers))

	assert.NoError(t, exchangeEntry("-118 USD").Balance(policy, eurUSD(t)))
}

func TestBalanceSameSignMultiCurrency(t *testing.T) {
	policy, _ := newTestPolicy()
	e := &Entry{
		Time: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		Transfers: []Transfer{
			{Account: "Expense.Travel", Amount: amount("100 EUR")},
			{Account: "Expense.Food", Amount: amount("18 USD")},
			{Account: "Assets.Card"},
		},
	}

	assert.NoError(t, e.Balance(policy, nil))
	assert.Equal(t, 3, len(e.Transfers))
	assert.Equal(t, "-100.00 EUR, -18.00 USD", e.Transfers[2].Amount.String())
	assert.True(t, e.Sum().IsZero())
}

func TestBalanceIsNoOpWhenZero(t *testing.T) {
	inputs := [][]string{
		{"1", "-1"},
		{"0.1", "0.2", "-0.3"},
		{"5 EUR", "-2 EUR", "-3 EUR"},
		{"10", "-5", "-5", "0"},
	}
	for _, amounts := range inputs {
		e := &Entry{Time: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)}
		for _, a := range amounts {
			e.Transfers = append(e.Transfers, Transfer{Account: "A", Amount: amount(a)})
		}
		before := len(e.Transfers)
		assert.NoError(t, e.Balance(nil, nil))
		assert.Equal(t, before, len(e.Transfers), "%v", amounts)
		assert.True(t, e.Transfers[before-1].Amount.Equal(amount(amounts[before-1])), "%v", amounts)
	}
}

func TestNew(t *testing.T) {
	policy, _ := newTestPolicy()
	e, err := New(
		time.Date(2021, 2, 3, 9, 30, 0, 0, time.UTC),
		"Lunch",
		[]Transfer{{Account: "Expense.Food", Amount: amount("12")}, {Account: "Assets.Cash"}},
		Metadata{"tag": String("work")},
		policy,
		nil,
	)
	assert.NoError(t, err)
	assert.True(t, ValidUUID(e.UUID))
	assert.Equal(t, 2021, e.Year())
	assert.Equal(t, "-12.00", e.Transfers[1].Amount.String())
	assert.Equal(t, []string{"Expense.Food", "Assets.Cash"}, e.Accounts())

	_, err = New(time.Now(), "x", []Transfer{{Account: "A"}}, Metadata{"uuid": String("x")}, policy, nil)
	assert.IsError(t, err, ErrReservedKey)

	_, err = New(time.Now(), "x", []Transfer{{Account: "A"}}, Metadata{"a:b": String("x")}, policy, nil)
	assert.IsError(t, err, ErrInvalidKey)

	_, err = New(time.Now(), "two\nlines", []Transfer{{Account: "A"}}, nil, policy, nil)
	assert.IsError(t, err, ErrInvalidEntry)

	_, err = New(time.Now(), "x", []Transfer{{Account: ""}}, nil, policy, nil)
	assert.IsError(t, err, ErrInvalidEntry)

	_, err = New(time.Now(), "x", nil, nil, policy, nil)
	assert.IsError(t, err, ErrInvalidEntry)
}

func TestNewUUID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewUUID(func(s string) bool { return seen[s] })
		assert.True(t, ValidUUID(id), id)
		assert.False(t, seen[id])
		seen[id] = true
	}

	calls := 0
	id := NewUUID(func(string) bool {
		calls++
		return calls < 3
	})
	assert.Equal(t, 3, calls)
	assert.True(t, ValidUUID(id))

	for _, id := range []string{"abcdefgh", "AAAAAAAA", "k3j9x0qa"} {
		assert.True(t, ValidUUID(id), id)
	}
	for _, id := range []string{"abc", "abcdefghi", "abc-defg", "abcd efg"} {
		assert.False(t, ValidUUID(id), id)
	}
}

func TestBookCloseAndClone(t *testing.T) {
	e := coffee("-3.50")
	assert.False(t, e.IsBookClose())

	assert.NoError(t, e.SetMeta(BookCloseKey, Bool(true)))
	assert.True(t, e.IsBookClose())

	c := e.Clone()
	c.Transfers[0].Account = "Changed"
	assert.NoError(t, c.SetMeta("note", String("copy")))
	assert.Equal(t, "Expense.Coffee", e.Transfers[0].Account)
	_, ok := e.Metadata.Get("note")
	assert.False(t, ok)

	assert.NoError(t, e.SetMeta(BookCloseKey, String("yes")))
	assert.False(t, e.IsBookClose())
}

func TestMetadataSet(t *testing.T) {
	m := Metadata{}
	for _, key := range []string{"time", "description", "uuid", "transfers"} {
		assert.IsError(t, m.Set(key, Null()), ErrReservedKey)
	}
	assert.Error(t, m.Set("", Null()))
	for _, key := range []string{"a:b", "a\rb", "a\tb", " lead", "trail ", "new\nline"} {
		assert.IsError(t, m.Set(key, Null()), ErrInvalidKey, "%q", key)
	}
	assert.NoError(t, m.Set("zeta", Null()))
	assert.NoError(t, m.Set("alpha", Bool(false)))
	assert.Equal(t, []string{"alpha", "zeta"}, m.Keys())
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
		want string
	}{
		{`null`, KindNull, `null`},
		{`true`, KindBool, `true`},
		{`false`, KindBool, `false`},
		{`12.50`, KindNumber, `12.5`},
		{`-3`, KindNumber, `-3`},
		{`0.1000000000000000055511151231257827`, KindNumber, `0.1000000000000000055511151231257827`},
		{`1e3`, KindNumber, `1000`},
		{`"hello"`, KindString, `"hello"`},
		{`"a <b> & \"c\""`, KindString, `"a <b> & \"c\""`},
		{` "padded" `, KindString, `"padded"`},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, err := ParseValue(tt.text)
			assert.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.want, v.String())

			again, err := ParseValue(v.String())
			assert.NoError(t, err)
			assert.True(t, v.Equal(again))
		})
	}
}

func TestValueJSONInvalid(t *testing.T) {
	for _, text := range []string{``, `{}`, `[1]`, `nope`, `"open`, `1 2`} {
		_, err := ParseValue(text)
		assert.IsError(t, err, ErrInvalidValue, text)
	}
}

func TestValueInStruct(t *testing.T) {
	type doc struct {
		Meta Metadata `json:"meta"`
	}
	in := doc{Meta: Metadata{"n": Number(decimal.RequireFromString("2.5")), "s": String("x"), "z": Null()}}
	b, err := json.Marshal(in)
	assert.NoError(t, err)
	assert.Equal(t, `{"meta":{"n":2.5,"s":"x","z":null}}`, string(b))

	var out doc
	assert.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, 3, len(out.Meta))
	assert.True(t, out.Meta["n"].Equal(in.Meta["n"]))
	assert.Equal(t, "x", out.Meta["s"].Text())
}
