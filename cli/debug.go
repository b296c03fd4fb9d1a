package cli

import (
	"strings"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
)

// DebugCmd provides utilities for debugging ledgers.
type DebugCmd struct {
	Entry DebugEntryCmd `cmd:"" help:"Dump the parsed form of an entry."`
	Rates DebugRatesCmd `cmd:"" help:"Dump the exchange rate graph."`
}

// DebugEntryCmd dumps one entry as Go values.
type DebugEntryCmd struct {
	UUID string `arg:"" help:"Id of the entry, with or without the leading #."`
}

func (cmd *DebugEntryCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "debug entry", func(s *session) error {
		e, err := s.store.Lookup(s.ctx, strings.TrimPrefix(cmd.UUID, "#"))
		if err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}
		repr.New(ctx.Stdout, repr.Indent("  ")).Println(e)
		return nil
	})
}

// DebugRatesCmd dumps the currencies and rate samples of the exchange graph.
type DebugRatesCmd struct {
	From string `arg:"" optional:"" help:"Only show samples from this currency."`
}

func (cmd *DebugRatesCmd) Run(ctx *kong.Context, globals *Globals) error {
	return globals.run(ctx, "debug rates", func(s *session) error {
		graph := s.store.Exchange()
		p := repr.New(ctx.Stdout, repr.Indent("  "))
		p.Println(graph.Stats())

		for _, a := range graph.Currencies() {
			if cmd.From != "" && a != cmd.From {
				continue
			}
			for _, b := range graph.Currencies() {
				if samples := graph.Samples(a, b); len(samples) > 0 {
					printInfof(ctx.Stdout, "%s → %s", a, b)
					p.Println(samples)
				}
			}
		}
		return nil
	})
}
