package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/formatter"
	"github.com/robinvdvleuten/tally/money"
)

type AddCmd struct {
	Date        DateFlag `help:"Date of the entry." default:"today" short:"t" placeholder:"DATE"`
	Description string   `arg:"" help:"What the entry is about."`
	Transfers   []string `arg:"" help:"Transfers as ACCOUNT=AMOUNT, for example Expense.Food=12.50 or Assets.Bank=-10 EUR. Leave the last amount out to balance the entry."`
	Meta        []string `help:"Metadata as KEY=VALUE; values are JSON, anything else is a string." short:"m" placeholder:"KEY=VALUE"`
}

func (cmd *AddCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "add", func(s *session) error {
		transfers := make([]entry.Transfer, 0, len(cmd.Transfers))
		for _, text := range cmd.Transfers {
			tr, err := ParseTransfer(text, s.store.Home(), cmd.Date.Time)
			if err != nil {
				return err
			}
			transfers = append(transfers, tr)
		}

		meta := entry.Metadata{}
		for _, text := range cmd.Meta {
			key, value, err := ParseMeta(text)
			if err != nil {
				return err
			}
			if err := meta.Set(key, value); err != nil {
				return err
			}
		}

		e, err := s.store.Create(s.ctx, cmd.Date.Time, cmd.Description, transfers, meta)
		if err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}

		if err := formatter.New().Display(e, ctx.Stdout); err != nil {
			return err
		}
		printSuccess(s.stderr, fmt.Sprintf("Added #%s", e.UUID))
		return nil
	})
}

// ParseTransfer parses ACCOUNT=AMOUNT. An optional memo precedes the account,
// separated by a colon: "lunch:Expense.Food=12". A missing amount leaves the
// transfer blank.
func ParseTransfer(text, home string, at time.Time) (entry.Transfer, error) {
	target, amount, _ := strings.Cut(text, "=")
	var tr entry.Transfer
	if memo, account, ok := strings.Cut(target, ":"); ok {
		tr.Memo = strings.TrimSpace(memo)
		target = account
	}
	tr.Account = strings.TrimSpace(target)
	if tr.Account == "" {
		return entry.Transfer{}, fmt.Errorf("transfer %q has no account", text)
	}

	m, err := money.Parse(amount, home, at)
	if err != nil {
		return entry.Transfer{}, fmt.Errorf("transfer %q: %w", text, err)
	}
	tr.Amount = m
	return tr, nil
}

// ParseMeta parses KEY=VALUE. A value that is not JSON is taken as a string.
func ParseMeta(text string) (string, entry.Value, error) {
	key, raw, ok := strings.Cut(text, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", entry.Value{}, fmt.Errorf("metadata %q is not KEY=VALUE", text)
	}
	value, err := entry.ParseValue(raw)
	if err != nil {
		value = entry.String(raw)
	}
	return key, value, nil
}
