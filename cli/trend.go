package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/tally/output"
	"github.com/robinvdvleuten/tally/query"
)

type TrendCmd struct {
	Accounts []string `arg:"" optional:"" help:"Account patterns such as exp.food; prefix with ! to exclude."`

	FilterFlags `embed:""`
	ValueFlags  `embed:""`

	Period     string `help:"Length of each period." enum:"daily,weekly,monthly,quarterly,yearly" default:"monthly" short:"p"`
	Cumulative bool   `help:"Show running totals instead of per-period totals."`
	Count      bool   `help:"Show the number of entries per period as well."`
}

func (cmd *TrendCmd) Run(ctx *kong.Context, globals *Globals) error {
	step, err := query.ParseStep(cmd.Period)
	if err != nil {
		return err
	}

	return globals.run(ctx, "trend", func(s *session) error {
		from, to := cmd.From.Time, cmd.To.Time
		if from.IsZero() {
			years := s.store.Years()
			if len(years) == 0 {
				printInfof(s.stderr, "No entries")
				return nil
			}
			from = time.Date(years[0], time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		if to.IsZero() {
			now := time.Now()
			to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		}
		periods := query.Periods(from, to, step)
		if len(periods) == 0 {
			printInfof(s.stderr, "Empty date range")
			return nil
		}

		sum := cmd.spec(query.Sum, cmd.Accounts)
		cmd.apply(&sum)
		shapes := []query.Spec{sum}
		if cmd.Count {
			count := cmd.spec(query.Count, cmd.Accounts)
			shapes = append(shapes, count)
		}

		batch := query.PeriodBatch(shapes, periods, cmd.Cumulative)
		results, err := query.NewEngine(s.store).Run(s.ctx, batch)
		if err != nil {
			return err
		}

		styles := output.NewStyles(ctx.Stdout)
		labels := make([]string, len(periods))
		amounts := make([]string, len(periods))
		width := 0
		for i, p := range periods {
			labels[i] = p.From.Format(time.DateOnly)
			res := results[i*batch.PeriodCount]
			if res.Err != nil {
				printError(s.stderr, fmt.Sprintf("%s: %v", p, res.Err))
				return NewCommandError(1)
			}
			amounts[i] = res.Sum.String()
			width = max(width, output.Width(amounts[i]))
		}

		for i := range periods {
			res := results[i*batch.PeriodCount]
			line := fmt.Sprintf("%s  %s", styles.Date(labels[i]), styles.Amount(output.PadLeft(amounts[i], width), signOf(res.Sum)))
			if cmd.Count {
				line += styles.Dim(fmt.Sprintf("  %4d", results[i*batch.PeriodCount+1].Count))
			}
			_, _ = fmt.Fprintln(ctx.Stdout, line)
		}
		return nil
	})
}
