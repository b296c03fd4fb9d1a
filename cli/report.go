package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/output"
	"github.com/robinvdvleuten/tally/query"
)

// FilterFlags are the entry filters shared by reporting commands.
type FilterFlags struct {
	From          DateFlag `help:"Only entries at or after this date." placeholder:"DATE"`
	To            DateFlag `help:"Only entries before this date." placeholder:"DATE"`
	Description   string   `help:"Only entries whose description matches this regular expression." short:"D" placeholder:"REGEX"`
	Meta          []string `help:"Only entries with metadata matching KEY or KEY=VALUE (regular expressions)." short:"m" placeholder:"KEY[=VALUE]"`
	SkipBookClose bool     `help:"Leave out book-close entries."`
}

func (f FilterFlags) spec(mode query.Mode, accounts []string) query.Spec {
	spec := query.Spec{
		Mode:          mode,
		From:          f.From.Time,
		To:            f.To.Time,
		Accounts:      accounts,
		Description:   f.Description,
		SkipBookClose: f.SkipBookClose,
	}
	for _, m := range f.Meta {
		key, value, _ := strings.Cut(m, "=")
		spec.Metadata = append(spec.Metadata, query.MetaFilter{Key: key, Value: value})
	}
	return spec
}

// ValueFlags convert reported sums into a single currency.
type ValueFlags struct {
	Currency string   `help:"Convert sums into this currency." short:"c"`
	At       DateFlag `help:"Convert at the rates of this date instead of each entry's date." placeholder:"DATE"`
}

func (v ValueFlags) apply(spec *query.Spec) {
	spec.Currency = v.Currency
	spec.ValueAt = v.At.Time
}

// signOf returns the sign of a single-currency amount and 0 for anything
// else.
func signOf(m money.Money) int {
	currencies := m.Currencies()
	if len(currencies) != 1 {
		return 0
	}
	return m.Amount(currencies[0]).Sign()
}

// writeBalances prints one line per account, sorted by name, and the total.
// With tree set the accounts hold rolled-up sums: they are indented by depth,
// only their last segment is shown and the total is that of the top level.
func writeBalances(w io.Writer, styles *output.Styles, accounts map[string]money.Money, tree bool) {
	names := maps.Keys(accounts)
	sort.Strings(names)

	labels := make([]string, len(names))
	amounts := make([]string, len(names))
	labelWidth, amountWidth := len("Total"), 0
	total := money.Money{}
	for i, name := range names {
		label := name
		depth := strings.Count(name, ".")
		if tree {
			label = strings.Repeat("  ", depth) + name[strings.LastIndex(name, ".")+1:]
		}
		if !tree || depth == 0 {
			total = total.Plus(accounts[name])
		}
		labels[i] = label
		amounts[i] = accounts[name].String()
		labelWidth = max(labelWidth, output.Width(label))
		amountWidth = max(amountWidth, output.Width(amounts[i]))
	}
	totalText := total.String()
	amountWidth = max(amountWidth, output.Width(totalText))

	for i, name := range names {
		_, _ = fmt.Fprintf(w, "%s  %s\n",
			styles.Account(output.PadRight(labels[i], labelWidth)),
			styles.Amount(output.PadLeft(amounts[i], amountWidth), signOf(accounts[name])),
		)
	}
	_, _ = fmt.Fprintln(w, styles.Dim(strings.Repeat("─", labelWidth+2+amountWidth)))
	_, _ = fmt.Fprintf(w, "%s  %s\n",
		output.PadRight("Total", labelWidth),
		styles.Amount(output.PadLeft(totalText, amountWidth), signOf(total)),
	)
}
