package cli

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/formatter"
	"github.com/robinvdvleuten/tally/query"
)

type RegisterCmd struct {
	Accounts []string `arg:"" optional:"" help:"Account patterns such as exp.food; prefix with ! to exclude."`

	FilterFlags `embed:""`

	Limit int `help:"Show only the last N entries (0 shows all)." short:"n" default:"0"`
}

func (cmd *RegisterCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "register", func(s *session) error {
		spec := cmd.spec(query.Entries, cmd.Accounts)
		results, err := query.NewEngine(s.store).Run(s.ctx, query.Batch{Specs: []query.Spec{spec}})
		if err != nil {
			return err
		}
		res := results[0]
		if res.Err != nil {
			printError(s.stderr, res.Err.Error())
			return NewCommandError(1)
		}

		entries := res.Entries
		if cmd.Limit > 0 && len(entries) > cmd.Limit {
			entries = entries[len(entries)-cmd.Limit:]
		}
		if len(entries) == 0 {
			printInfof(s.stderr, "No matching entries")
			return nil
		}

		f := formatter.New()
		for i, e := range entries {
			if i > 0 {
				_, _ = fmt.Fprintln(ctx.Stdout)
			}
			if err := f.Display(e, ctx.Stdout); err != nil {
				return err
			}
		}
		return nil
	})
}
