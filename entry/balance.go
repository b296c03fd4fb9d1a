package entry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/warn"
)

// ErrImbalancedEntry is wrapped by ImbalancedEntryError.
var ErrImbalancedEntry = errors.New("imbalanced entry")

// ImbalancedEntryError is returned by Balance under a strict policy when the
// transfers do not sum to zero and there is no blank transfer to fill.
type ImbalancedEntryError struct {
	UUID        string
	Time        time.Time
	Description string
	Residual    money.Money
}

func (e *ImbalancedEntryError) Error() string {
	return fmt.Sprintf("%s %s (#%s) does not balance: residual %s",
		e.Time.Format(time.DateOnly), e.Description, e.UUID, e.Residual)
}

func (e *ImbalancedEntryError) Unwrap() error {
	return ErrImbalancedEntry
}

// Balance makes the transfers of e sum to zero.
//
// A residual spread over several currencies is converted into one of them
// with conv as of the entry's time; when that rounds to zero at display
// precision the entry is an exchange and is left as is. Any other residual is
// absorbed by the last transfer when that transfer is blank; otherwise a
// transfer to ImbalanceAccount is appended and the imbalance is reported.
// Under a strict policy an imbalance that cannot be filled returns an
// *ImbalancedEntryError and leaves e untouched. conv may be nil.
func (e *Entry) Balance(policy *warn.Policy, conv money.Converter) error {
	residual := e.Sum()
	if residual.IsZero() {
		return nil
	}
	if isExchange(residual, conv, e.Time) {
		return nil
	}

	fill := residual.Neg()
	if n := len(e.Transfers); n > 0 && e.Transfers[n-1].Amount.IsZero() {
		last := e.Transfers[n-1].Amount
		e.Transfers[n-1].Amount = fill.WithHome(homeOf(last, fill)).WithAsOf(e.Time)
		return nil
	}

	if policy.IsStrict() {
		return &ImbalancedEntryError{UUID: e.UUID, Time: e.Time, Description: e.Description, Residual: residual}
	}

	e.Transfers = append(e.Transfers, Transfer{Account: ImbalanceAccount, Amount: fill.WithAsOf(e.Time)})
	policy.Report(warn.ImbalancedEntries, "entry does not balance",
		slog.String("uuid", e.UUID),
		slog.String("date", e.Time.Format(time.DateOnly)),
		slog.String("description", e.Description),
		slog.String("imbalance", fill.String()),
	)
	return nil
}

// isExchange reports whether a residual in several currencies is worth
// nothing once converted into one of them.
func isExchange(residual money.Money, conv money.Converter, at time.Time) bool {
	if conv == nil || residual.Len() < 2 {
		return false
	}
	target := residual.Home
	if residual.Amount(target).IsZero() {
		target = residual.Currencies()[0]
	}
	converted, err := residual.Convert(conv, target, at)
	if err != nil {
		return false
	}
	return converted.Round(converted.Precision(target)).IsZero()
}

func homeOf(ms ...money.Money) string {
	for _, m := range ms {
		if m.Home != "" {
			return m.Home
		}
	}
	return ""
}
