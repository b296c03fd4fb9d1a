// Package entry models ledger transactions and enforces that their transfers
// sum to zero.
package entry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/warn"
)

// ImbalanceAccount receives the synthetic transfer that absorbs whatever an
// entry fails to balance.
const ImbalanceAccount = "Imbalance"

// BookCloseKey is the metadata key flagging a period-end rollover entry.
const BookCloseKey = "book-close"

// ErrInvalidEntry is wrapped by structural validation failures.
var ErrInvalidEntry = errors.New("invalid entry")

// Transfer moves Amount into Account. A negative amount moves it out.
type Transfer struct {
	Memo    string
	Account string
	Amount  money.Money
}

// Entry is one ledger transaction.
type Entry struct {
	UUID        string
	Time        time.Time
	Description string
	Metadata    Metadata
	Transfers   []Transfer
}

// New builds an entry with a fresh uuid and balances it. conv converts
// multi-currency residuals and may be nil.
func New(t time.Time, description string, transfers []Transfer, meta Metadata, policy *warn.Policy, conv money.Converter) (*Entry, error) {
	e := &Entry{
		UUID:        NewUUID(nil),
		Time:        t,
		Description: description,
		Metadata:    meta,
		Transfers:   transfers,
	}
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := e.Balance(policy, conv); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks that every field can be written to a year file.
func (e *Entry) Validate() error {
	if strings.ContainsAny(e.Description, "\n\r") {
		return fmt.Errorf("%w: description contains a line break", ErrInvalidEntry)
	}
	for k := range e.Metadata {
		if err := ValidKey(k); err != nil {
			return err
		}
	}
	if len(e.Transfers) == 0 {
		return fmt.Errorf("%w: no transfers", ErrInvalidEntry)
	}
	for i, tr := range e.Transfers {
		if strings.TrimSpace(tr.Account) == "" {
			return fmt.Errorf("%w: transfer %d has no account", ErrInvalidEntry, i+1)
		}
		if strings.ContainsAny(tr.Account, "\t\n\r ") {
			return fmt.Errorf("%w: account %q contains whitespace", ErrInvalidEntry, tr.Account)
		}
		if strings.ContainsAny(tr.Memo, "\t\n\r") {
			return fmt.Errorf("%w: memo %q contains a tab or line break", ErrInvalidEntry, tr.Memo)
		}
		if strings.HasPrefix(tr.Memo, ";") {
			return fmt.Errorf("%w: memo %q starts with a semicolon", ErrInvalidEntry, tr.Memo)
		}
	}
	return nil
}

// Year is the calendar year bucket of the entry.
func (e *Entry) Year() int {
	return e.Time.Year()
}

// Sum returns the signed total of all transfer amounts.
func (e *Entry) Sum() money.Money {
	total := money.Money{}.WithAsOf(e.Time)
	for _, tr := range e.Transfers {
		total = total.Plus(tr.Amount)
	}
	return total
}

// Accounts returns the distinct accounts in transfer order.
func (e *Entry) Accounts() []string {
	seen := make(map[string]bool, len(e.Transfers))
	out := make([]string, 0, len(e.Transfers))
	for _, tr := range e.Transfers {
		if seen[tr.Account] {
			continue
		}
		seen[tr.Account] = true
		out = append(out, tr.Account)
	}
	return out
}

// IsBookClose reports whether the entry is flagged as a book-close.
func (e *Entry) IsBookClose() bool {
	v, ok := e.Metadata.Get(BookCloseKey)
	if !ok {
		return false
	}
	b, ok := v.AsBool()
	return ok && b
}

// SetMeta assigns a metadata value, creating the map when needed.
func (e *Entry) SetMeta(key string, value Value) error {
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}
	return e.Metadata.Set(key, value)
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Metadata = e.Metadata.Clone()
	c.Transfers = make([]Transfer, len(e.Transfers))
	copy(c.Transfers, e.Transfers)
	return &c
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %s #%s", e.Time.Format(time.DateOnly), e.Description, e.UUID)
}
