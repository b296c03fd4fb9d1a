package cli

import (
	"fmt"
	"io"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/output"
	"github.com/robinvdvleuten/tally/query"
)

type BalanceCmd struct {
	Accounts []string `arg:"" optional:"" help:"Account patterns such as exp.food; prefix with ! to exclude."`

	FilterFlags `embed:""`
	ValueFlags  `embed:""`

	Flat bool `help:"List accounts as booked instead of rolling them up into their parents."`
}

func (cmd *BalanceCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "balance", func(s *session) error {
		return cmd.report(s, ctx.Stdout)
	})
}

func (cmd *BalanceCmd) report(s *session, w io.Writer) error {
	spec := cmd.spec(query.AccountsSum, cmd.Accounts)
	spec.SumToParent = !cmd.Flat
	cmd.apply(&spec)

	results, err := query.NewEngine(s.store).Run(s.ctx, query.Batch{Specs: []query.Spec{spec}})
	if err != nil {
		return err
	}
	res := results[0]
	if res.Err != nil {
		printError(s.stderr, res.Err.Error())
		return NewCommandError(1)
	}

	if len(res.Accounts) == 0 {
		printInfof(s.stderr, "No matching transfers")
		return nil
	}

	writeBalances(w, output.NewStyles(w), res.Accounts, spec.SumToParent)
	if n := len(s.store.Policy().Reported()); n > 0 {
		_, _ = fmt.Fprintln(w)
		printWarning(s.stderr, fmt.Sprintf("%d warning(s) while loading, run check for details", n))
	}
	return nil
}
