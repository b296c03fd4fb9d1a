// Package query runs batches of report queries over a ledger in a single pass
// over its entries.
package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/exchange"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/telemetry"
)

// ErrInvalidSpec is wrapped by every SpecError.
var ErrInvalidSpec = errors.New("invalid query")

// Mode is what a query collects.
type Mode int

const (
	// Sum adds the amounts of matching transfers.
	Sum Mode = iota
	// Count counts matching entries.
	Count
	// Entries collects matching entries.
	Entries
	// AccountsSum adds the amounts of matching transfers per account.
	AccountsSum
)

var modeNames = map[Mode]string{
	Sum:         "sum",
	Count:       "count",
	Entries:     "entries",
	AccountsSum: "accounts-sum",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidSpec, s)
}

// MetaFilter requires a metadata key matching Key whose value, as text,
// matches Value. An empty Value accepts any value.
type MetaFilter struct {
	Key   string
	Value string
}

// Spec is one query.
type Spec struct {
	// From and To bound entry times to [From, To). A zero bound is open.
	From time.Time
	To   time.Time

	// Metadata filters must all be satisfied.
	Metadata []MetaFilter

	// Accounts are AccountMatcher patterns selecting transfers. No patterns
	// select every transfer.
	Accounts []string

	// Description is a regular expression the description must match.
	Description string

	// SkipBookClose excludes book-close entries.
	SkipBookClose bool

	Mode Mode

	// Currency, when set, converts every amount into it before summing.
	Currency string

	// ValueAt, when set, is the conversion date instead of each entry's time.
	ValueAt time.Time

	// SumToParent adds AccountsSum amounts to every ancestor account as well.
	SumToParent bool
}

// Batch is a list of queries answered together.
type Batch struct {
	Specs []Spec

	// Cumulative adds to each result the result PeriodCount positions
	// before it, turning per-period results into running totals.
	Cumulative bool

	// PeriodCount is the number of specs per period.
	PeriodCount int
}

// Result is the answer to one Spec. Only the field matching its Mode is set.
type Result struct {
	Sum      money.Money
	Count    int
	Entries  []*entry.Entry
	Accounts map[string]money.Money
	Err      error
}

// SpecError reports a query that could not be compiled.
type SpecError struct {
	Index int
	Err   error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("query %d: %v", e.Index+1, e.Err)
}

func (e *SpecError) Unwrap() []error {
	return []error{ErrInvalidSpec, e.Err}
}

// Source is the ledger a query reads.
type Source interface {
	YearsSpanning(from, to time.Time) []int
	EnsureOpen(ctx context.Context, years ...int) error
	Entries(year int) []*entry.Entry
	Exchange() *exchange.Graph
}

// Engine runs batches against a Source.
type Engine struct {
	src Source
}

// NewEngine creates an Engine.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

type compiled struct {
	spec        Spec
	accounts    *AccountMatcher
	description *regexp.Regexp
	meta        []metaMatcher
}

type metaMatcher struct {
	key   *regexp.Regexp
	value *regexp.Regexp
}

func compile(spec Spec) (*compiled, error) {
	if _, ok := modeNames[spec.Mode]; !ok {
		return nil, fmt.Errorf("unknown mode %d", int(spec.Mode))
	}
	if !spec.From.IsZero() && !spec.To.IsZero() && spec.To.Before(spec.From) {
		return nil, fmt.Errorf("range ends before it starts")
	}

	c := &compiled{spec: spec}

	var err error
	if c.accounts, err = CompileMatcher(spec.Accounts...); err != nil {
		return nil, err
	}
	if spec.Description != "" {
		if c.description, err = regexp.Compile("(?i)" + spec.Description); err != nil {
			return nil, fmt.Errorf("description: %w", err)
		}
	}
	for _, f := range spec.Metadata {
		var m metaMatcher
		if m.key, err = regexp.Compile("^(?:" + f.Key + ")$"); err != nil {
			return nil, fmt.Errorf("metadata key: %w", err)
		}
		if f.Value != "" {
			if m.value, err = regexp.Compile(f.Value); err != nil {
				return nil, fmt.Errorf("metadata value: %w", err)
			}
		}
		c.meta = append(c.meta, m)
	}
	return c, nil
}

// matchEntry applies the entry level filters.
func (c *compiled) matchEntry(e *entry.Entry) bool {
	if !c.spec.From.IsZero() && e.Time.Before(c.spec.From) {
		return false
	}
	if !c.spec.To.IsZero() && !e.Time.Before(c.spec.To) {
		return false
	}
	if c.spec.SkipBookClose && e.IsBookClose() {
		return false
	}
	if c.description != nil && !c.description.MatchString(e.Description) {
		return false
	}
	for _, m := range c.meta {
		if !m.match(e.Metadata) {
			return false
		}
	}
	return true
}

func (m metaMatcher) match(meta entry.Metadata) bool {
	for key, v := range meta {
		if !m.key.MatchString(key) {
			continue
		}
		if m.value == nil || m.value.MatchString(v.Text()) {
			return true
		}
	}
	return false
}

type accumulator struct {
	*compiled
	index  int
	result Result
}

// Run answers every spec of batch. A spec that does not compile, or whose
// amounts cannot be converted, gets an error in its Result. Failing to load
// the ledger fails the whole batch.
func (eng *Engine) Run(ctx context.Context, batch Batch) ([]Result, error) {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("query.run %d specs", len(batch.Specs)))
	defer timer.End()
	ctx = telemetry.WithTimer(ctx, timer)

	results := make([]Result, len(batch.Specs))
	accs := make([]*accumulator, 0, len(batch.Specs))
	yearSet := make(map[int]bool)

	for i, spec := range batch.Specs {
		c, err := compile(spec)
		if err != nil {
			results[i].Err = &SpecError{Index: i, Err: err}
			continue
		}
		acc := &accumulator{compiled: c, index: i}
		if spec.Mode == AccountsSum {
			acc.result.Accounts = make(map[string]money.Money)
		}
		accs = append(accs, acc)
		for _, y := range eng.src.YearsSpanning(spec.From, spec.To) {
			yearSet[y] = true
		}
	}

	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	if err := eng.src.EnsureOpen(ctx, years...); err != nil {
		return nil, err
	}

	var conv money.Converter
	if graph := eng.src.Exchange(); graph != nil {
		conv = graph
	}
	for _, y := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range eng.src.Entries(y) {
			for _, acc := range accs {
				acc.add(e, conv)
			}
		}
	}

	for _, acc := range accs {
		acc.finish()
		results[acc.index] = acc.result
	}
	if batch.Cumulative {
		accumulate(results, batch.PeriodCount)
	}
	return results, nil
}

// accumulate adds result i-stride to result i, in order, so every result
// holds the total of its own period and all earlier ones.
func accumulate(results []Result, stride int) {
	if stride <= 0 {
		return
	}
	for i := stride; i < len(results); i++ {
		prev, cur := &results[i-stride], &results[i]
		if cur.Err != nil {
			continue
		}
		if prev.Err != nil {
			cur.Err = prev.Err
			continue
		}
		cur.Sum = cur.Sum.Plus(prev.Sum)
		cur.Count += prev.Count
		if prev.Entries != nil {
			cur.Entries = append(append([]*entry.Entry(nil), prev.Entries...), cur.Entries...)
		}
		if prev.Accounts != nil {
			merged := make(map[string]money.Money, len(prev.Accounts)+len(cur.Accounts))
			for a, m := range prev.Accounts {
				merged[a] = m
			}
			for a, m := range cur.Accounts {
				merged[a] = merged[a].Plus(m)
			}
			cur.Accounts = merged
		}
	}
}

func (acc *accumulator) add(e *entry.Entry, conv money.Converter) {
	if acc.result.Err != nil || !acc.matchEntry(e) {
		return
	}

	matched := false
	for _, tr := range e.Transfers {
		if !acc.accounts.Match(tr.Account) {
			continue
		}
		matched = true

		switch acc.spec.Mode {
		case Sum, AccountsSum:
			amount, err := acc.convert(tr.Amount, e.Time, conv)
			if err != nil {
				acc.result.Err = err
				return
			}
			if acc.spec.Mode == Sum {
				acc.result.Sum = acc.result.Sum.Plus(amount)
			} else {
				acc.addAccount(tr.Account, amount)
			}
		}
	}
	if !matched {
		return
	}

	switch acc.spec.Mode {
	case Count:
		acc.result.Count++
	case Entries:
		acc.result.Entries = append(acc.result.Entries, e)
	}
}

func (acc *accumulator) convert(m money.Money, at time.Time, conv money.Converter) (money.Money, error) {
	if acc.spec.Currency == "" {
		return m, nil
	}
	if !acc.spec.ValueAt.IsZero() {
		at = acc.spec.ValueAt
	}
	return m.Convert(conv, acc.spec.Currency, at)
}

func (acc *accumulator) addAccount(account string, amount money.Money) {
	acc.result.Accounts[account] = acc.result.Accounts[account].Plus(amount)
	if !acc.spec.SumToParent {
		return
	}
	for i := strings.LastIndexByte(account, '.'); i > 0; i = strings.LastIndexByte(account, '.') {
		account = account[:i]
		acc.result.Accounts[account] = acc.result.Accounts[account].Plus(amount)
	}
}

func (acc *accumulator) finish() {
	if acc.result.Err != nil {
		acc.result.Sum = money.Money{}
		acc.result.Count = 0
		acc.result.Entries = nil
		acc.result.Accounts = nil
	}
}
