package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/formatter"
)

type RmCmd struct {
	UUID string `arg:"" help:"Id of the entry, with or without the leading #."`
}

func (cmd *RmCmd) Run(ctx *kong.Context, globals *Globals) error {
	uuid := strings.TrimPrefix(cmd.UUID, "#")

	return globals.run(ctx, "rm", func(s *session) error {
		e, err := s.store.Lookup(s.ctx, uuid)
		if err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}
		if err := formatter.New().Display(e, ctx.Stdout); err != nil {
			return err
		}

		if !globals.Yes {
			ok, err := confirm("Remove this entry?")
			if err != nil {
				return err
			}
			if !ok {
				printInfof(s.stderr, "Kept #%s (use --yes to remove without asking)", uuid)
				return nil
			}
		}

		if _, err := s.store.Remove(s.ctx, uuid); err != nil {
			return err
		}
		printSuccess(s.stderr, fmt.Sprintf("Removed #%s", uuid))
		return nil
	})
}

type RetimeCmd struct {
	UUID string   `arg:"" help:"Id of the entry, with or without the leading #."`
	Date DateFlag `arg:"" help:"New date. The time of day is kept unless the date carries one."`
}

func (cmd *RetimeCmd) Run(ctx *kong.Context, globals *Globals) error {
	uuid := strings.TrimPrefix(cmd.UUID, "#")

	return globals.run(ctx, "retime", func(s *session) error {
		old, err := s.store.Lookup(s.ctx, uuid)
		if err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}

		e := old.Clone()
		e.Time = Retime(old.Time, cmd.Date.Time)
		if err := s.store.Modify(s.ctx, e); err != nil {
			printError(s.stderr, err.Error())
			return NewCommandError(1)
		}

		printSuccess(s.stderr, fmt.Sprintf("Moved #%s from %s to %s",
			uuid, old.Time.Format(time.DateOnly), e.Time.Format(time.DateOnly)))
		return nil
	})
}

// Retime moves old to the date of to. The clock of old survives when to is
// at midnight.
func Retime(old, to time.Time) time.Time {
	if h, m, s := to.Clock(); h != 0 || m != 0 || s != 0 {
		return to
	}
	h, m, s := old.Clock()
	return time.Date(to.Year(), to.Month(), to.Day(), h, m, s, 0, time.UTC)
}
