package cli

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/formatter"
)

type FormatCmd struct {
	Years  []int `arg:"" optional:"" help:"Years to format (all years if omitted)."`
	Stdout bool  `help:"Print the formatted years instead of rewriting the files."`
}

func (cmd *FormatCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "format", func(s *session) error {
		years := cmd.Years
		if len(years) == 0 {
			years = s.store.Years()
		}

		if cmd.Stdout {
			if err := s.store.EnsureOpen(s.ctx, years...); err != nil {
				return renderParseError(ctx, NewErrorRenderer(nil), err)
			}
			f := formatter.New()
			for _, year := range years {
				if err := f.FormatYear(s.store.Entries(year), ctx.Stdout); err != nil {
					return err
				}
			}
			return nil
		}

		if err := s.store.Rewrite(s.ctx, years...); err != nil {
			return renderParseError(ctx, NewErrorRenderer(nil), err)
		}
		printSuccess(ctx.Stderr, fmt.Sprintf("Formatted %d year%s", len(years), plural(len(years), "", "s")))
		return nil
	})
}
