package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/exchange"
	"github.com/robinvdvleuten/tally/formatter"
	"github.com/robinvdvleuten/tally/money"
)

type PriceCmd struct {
	Currency string   `arg:"" help:"Currency being priced, for example EUR."`
	Amount   string   `arg:"" help:"What one unit is worth, for example \"1.17 USD\". A bare number is in the home currency."`
	Date     DateFlag `help:"Date the rate applies from." default:"today" short:"t" placeholder:"DATE"`
}

func (cmd *PriceCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "price", func(s *session) error {
		m, err := money.Parse(cmd.Amount, s.store.Home(), cmd.Date.Time)
		if err != nil {
			return err
		}
		currencies := m.Currencies()
		if len(currencies) != 1 {
			return fmt.Errorf("price %q must be a single amount", cmd.Amount)
		}
		to := currencies[0]
		rate := m.Amount(to)

		if err := s.store.AddRate(s.ctx, cmd.Currency, to, rate, cmd.Date.Time); err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}
		line := formatter.FormatPrice(exchange.Rate{From: cmd.Currency, To: to, Rate: rate, At: cmd.Date.Time})
		printSuccess(s.stderr, "Recorded "+line)
		return nil
	})
}

type ConvertCmd struct {
	Amount string   `arg:"" help:"Amount to convert, for example \"10 EUR, 5 GBP\"."`
	To     string   `arg:"" optional:"" help:"Target currency (defaults to the home currency)."`
	At     DateFlag `help:"Use the rates of this date (defaults to today)." placeholder:"DATE"`
	Path   bool     `help:"Show the chain of currencies each conversion goes through."`
}

func (cmd *ConvertCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "convert", func(s *session) error {
		at := cmd.At.Time
		if at.IsZero() {
			now := time.Now()
			at = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		}
		target := cmd.To
		if target == "" {
			target = s.store.Home()
		}

		m, err := money.Parse(cmd.Amount, s.store.Home(), at)
		if err != nil {
			return err
		}

		graph := s.store.Exchange()
		if cmd.Path {
			for _, c := range m.Currencies() {
				if c == target {
					continue
				}
				path, err := graph.Path(c, target)
				if err != nil {
					printError(s.stderr, err.Error())
					return NewCommandError(1)
				}
				printInfof(s.stderr, "%s", strings.Join(path, " → "))
			}
		}

		converted, err := m.Convert(graph, target, at)
		if err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}
		_, _ = fmt.Fprintln(ctx.Stdout, converted.Round(-1).String())
		return nil
	})
}
