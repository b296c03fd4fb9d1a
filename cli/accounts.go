package cli

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/output"
	"github.com/robinvdvleuten/tally/query"
)

type AccountsCmd struct {
	Patterns []string `arg:"" optional:"" help:"Account patterns such as exp.food; prefix with ! to exclude."`
	Scan     bool     `help:"Load every year first so accounts missing from the config are found too."`
}

func (cmd *AccountsCmd) Run(ctx *kong.Context, globals *Globals) error {
	matcher, err := query.CompileMatcher(cmd.Patterns...)
	if err != nil {
		return err
	}

	return globals.run(ctx, "accounts", func(s *session) error {
		if cmd.Scan {
			if err := s.store.EnsureOpen(s.ctx, s.store.Years()...); err != nil {
				return renderParseError(ctx, NewErrorRenderer(nil), err)
			}
		}

		styles := output.NewStyles(ctx.Stdout)
		for _, account := range matcher.Filter(s.store.Accounts()) {
			_, _ = fmt.Fprintln(ctx.Stdout, styles.Account(account))
		}
		return nil
	})
}
