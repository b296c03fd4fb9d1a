package cli

import (
	"errors"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/parser"
)

type CheckCmd struct {
	Years []int `arg:"" optional:"" help:"Years to check (all years if omitted)."`
}

func (cmd *CheckCmd) Run(ctx *kong.Context, globals *Globals) error {
	renderer := NewErrorRenderer(nil)

	s, err := globals.open(ctx, "check")
	if err != nil {
		return renderParseError(ctx, renderer, err)
	}

	years := cmd.Years
	if len(years) == 0 {
		years = s.store.Years()
	}
	if err := s.store.EnsureOpen(s.ctx, years...); err != nil {
		_ = s.close(false)
		return renderParseError(ctx, renderer, err)
	}

	// Entries that needed a synthetic transfer, in year order.
	var imbalanced []*entry.Entry
	count := 0
	for _, year := range years {
		for _, e := range s.store.Entries(year) {
			count++
			for _, tr := range e.Transfers {
				if tr.Account == entry.ImbalanceAccount {
					imbalanced = append(imbalanced, e)
					break
				}
			}
		}
	}

	for _, w := range s.store.Policy().Reported() {
		printWarning(ctx.Stderr, w.String())
	}

	if err := s.close(len(imbalanced) == 0); err != nil {
		return err
	}

	if len(imbalanced) > 0 {
		renderer.WithEntries(func(uuid string) (*entry.Entry, bool) {
			for _, e := range imbalanced {
				if e.UUID == uuid {
					return e, true
				}
			}
			return nil, false
		})
		errs := make([]error, len(imbalanced))
		for i, e := range imbalanced {
			errs[i] = &entry.ImbalancedEntryError{UUID: e.UUID, Time: e.Time, Description: e.Description, Residual: imbalanceOf(e)}
		}
		_, _ = fmt.Fprintln(ctx.Stderr, renderer.RenderAll(errs))
		_, _ = fmt.Fprintln(ctx.Stderr)
		printError(ctx.Stderr, fmt.Sprintf("%d imbalanced entr%s found", len(imbalanced), plural(len(imbalanced), "y", "ies")))
		return NewCommandError(1)
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Checked %d entr%s in %d year%s",
		count, plural(count, "y", "ies"), len(years), plural(len(years), "", "s")))
	return nil
}

// imbalanceOf returns what the Imbalance transfers of e absorb.
func imbalanceOf(e *entry.Entry) (residual money.Money) {
	for _, tr := range e.Transfers {
		if tr.Account == entry.ImbalanceAccount {
			residual = residual.Minus(tr.Amount)
		}
	}
	return residual
}

func renderParseError(ctx *kong.Context, renderer *ErrorRenderer, err error) error {
	var perr *parser.ParseError
	if !errors.As(err, &perr) {
		return err
	}
	_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(err))
	_, _ = fmt.Fprintln(ctx.Stderr)
	printError(ctx.Stderr, "parse error")
	return NewCommandError(1)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
