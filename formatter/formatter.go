// Package formatter writes entries back out, either in the year file format
// the parser reads or as aligned text for people.
package formatter

import (
	"bufio"
	"io"
	"strings"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/exchange"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/output"
	"github.com/robinvdvleuten/tally/parser"
)

const (
	// DefaultIndentation precedes metadata and transfer lines.
	DefaultIndentation = 2

	// MinimumSpacing separates the account column from the amount column.
	MinimumSpacing = 2
)

// Formatter renders entries. Its options only affect Display; the year file
// format is fixed.
type Formatter struct {
	// AccountWidth is the width of the account column in Display.
	// Zero selects the widest account of the entry.
	AccountWidth int

	// AmountColumn is the column the amounts of Display end at.
	// Zero places them MinimumSpacing after the account column.
	AmountColumn int
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithAccountWidth fixes the width of the account column.
func WithAccountWidth(width int) Option {
	return func(f *Formatter) {
		f.AccountWidth = width
	}
}

// WithAmountColumn right-aligns amounts to end at column.
func WithAmountColumn(column int) Option {
	return func(f *Formatter) {
		f.AmountColumn = column
	}
}

// New creates a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Header returns the header line of e, without a newline. The time of day is
// only written when it is not midnight.
func Header(e *entry.Entry) string {
	var b strings.Builder
	if h, m, s := e.Time.Clock(); h == 0 && m == 0 && s == 0 {
		b.WriteString(e.Time.Format(parser.DateLayout))
	} else {
		b.WriteString(e.Time.Format(parser.DateTimeLayout))
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		b.WriteByte(' ')
		b.WriteString(d)
	}
	b.WriteString(" #")
	b.WriteString(e.UUID)
	return b.String()
}

// FormatEntry writes e in the year file format.
func (f *Formatter) FormatEntry(e *entry.Entry, w io.Writer) error {
	bw := bufio.NewWriter(w)
	writeEntry(bw, e)
	return bw.Flush()
}

// FormatYear writes entries in order in the year file format.
func (f *Formatter) FormatYear(entries []*entry.Entry, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		writeEntry(bw, e)
	}
	return bw.Flush()
}

func writeEntry(w *bufio.Writer, e *entry.Entry) {
	indent := strings.Repeat(" ", DefaultIndentation)

	w.WriteString(Header(e))
	w.WriteByte('\n')

	for _, key := range e.Metadata.Keys() {
		w.WriteString(indent)
		w.WriteByte(';')
		w.WriteString(key)
		w.WriteByte(':')
		w.WriteString(e.Metadata[key].String())
		w.WriteByte('\n')
	}

	for _, tr := range e.Transfers {
		w.WriteString(indent)
		w.WriteString(tr.Memo)
		w.WriteByte('\t')
		w.WriteString(tr.Account)
		w.WriteByte('\t')
		w.WriteString(tr.Amount.String())
		w.WriteByte('\n')
	}
}

// Display writes e as aligned text: the header, then one line per transfer
// with the account, the right-aligned amount and the memo.
func (f *Formatter) Display(e *entry.Entry, w io.Writer) error {
	accountWidth := f.AccountWidth
	if accountWidth == 0 {
		for _, tr := range e.Transfers {
			if n := output.Width(tr.Account); n > accountWidth {
				accountWidth = n
			}
		}
	}

	amounts := make([]string, len(e.Transfers))
	amountWidth := 0
	for i, tr := range e.Transfers {
		amounts[i] = tr.Amount.String()
		if n := output.Width(amounts[i]); n > amountWidth {
			amountWidth = n
		}
	}

	prefix := DefaultIndentation + accountWidth + MinimumSpacing
	if f.AmountColumn > prefix+amountWidth {
		amountWidth = f.AmountColumn - prefix
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(Header(e))
	bw.WriteByte('\n')

	indent := strings.Repeat(" ", DefaultIndentation)
	for _, key := range e.Metadata.Keys() {
		bw.WriteString(indent + key + ": " + e.Metadata[key].Text() + "\n")
	}

	for i, tr := range e.Transfers {
		line := indent +
			output.PadRight(output.Truncate(tr.Account, accountWidth), accountWidth) +
			strings.Repeat(" ", MinimumSpacing) +
			output.PadLeft(amounts[i], amountWidth)
		if tr.Memo != "" {
			line += strings.Repeat(" ", MinimumSpacing) + tr.Memo
		}
		bw.WriteString(line)
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

// FormatPrice returns the price file line for r.
func FormatPrice(r exchange.Rate) string {
	amount := money.New(r.Rate, r.To)
	return "P " + r.At.Format(parser.DateLayout) + " " + r.From + " " + amount.String()
}
