// Package cli implements the tally command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/araddon/dateparse"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/robinvdvleuten/tally/store"
	"github.com/robinvdvleuten/tally/telemetry"
	"github.com/robinvdvleuten/tally/warn"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"
	warnSymbol    = "!"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FFAF00", Dark: "#FFAF00"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printWarning(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		warnStyle.Render(warnSymbol),
		message,
	)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

// confirm asks a yes/no question; replaced in tests.
var confirm = promptYesNo

// promptYesNo prompts the user with a yes/no question.
// Returns false by default if stdin is not a terminal.
func promptYesNo(question string) (bool, error) {
	if !isTerminal() {
		return false, nil
	}

	var confirm bool

	form := huh.NewConfirm().
		Title(question).
		WithButtonAlignment(lipgloss.Left).
		Value(&confirm)

	err := form.Run()
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	return confirm, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// DateFlag is a date given on the command line in any common layout, such as
// 2021-03-04, 03/04/2021 or "March 4, 2021". Times are wall clock times in
// UTC, like the times in year files.
type DateFlag struct {
	time.Time
}

// Decode implements kong.MapperValue.
func (d *DateFlag) Decode(ctx *kong.DecodeContext) error {
	var text string
	if err := ctx.Scan.PopValueInto("date", &text); err != nil {
		return err
	}
	t, err := ParseDate(text)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses a command line date. "today" and "now" are understood too.
func ParseDate(text string) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "now":
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.UTC), nil
	case "today":
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", text, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

// session is an opened ledger plus the context commands run in.
type session struct {
	ctx       context.Context
	store     *store.Store
	logger    *slog.Logger
	collector telemetry.Collector
	timer     telemetry.Timer
	stderr    io.Writer
}

// open prepares logging and telemetry and opens the ledger directory. When
// the directory does not exist it is created after confirmation.
func (g *Globals) open(kctx *kong.Context, name string) (*session, error) {
	s := &session{
		ctx:    context.Background(),
		logger: g.Logger(kctx.Stderr),
		stderr: kctx.Stderr,
	}

	if g.Telemetry {
		collector := telemetry.NewTimingCollector()
		s.collector = collector
		s.ctx = telemetry.WithCollector(s.ctx, collector)
		s.timer = collector.Start(name)
		s.ctx = telemetry.WithTimer(s.ctx, s.timer)
	}

	opts := []store.Option{store.WithLogger(s.logger)}
	st, err := store.Open(s.ctx, g.Dir, opts...)
	if errors.Is(err, store.ErrNoLedger) {
		create := g.Yes
		if !create {
			create, err = confirm(fmt.Sprintf("No ledger at %s. Create it?", g.Dir))
			if err != nil {
				return nil, err
			}
		}
		if !create {
			return nil, fmt.Errorf("no ledger at %s (use --yes to create it)", g.Dir)
		}
		if err := os.MkdirAll(g.Dir, 0o755); err != nil {
			return nil, err
		}
		printInfof(kctx.Stderr, "Created ledger %s", pathStyle.Render(g.Dir))
		st, err = store.Open(s.ctx, g.Dir, opts...)
	}
	if err != nil {
		return nil, err
	}

	policy := st.Policy()
	policy.Ignore(g.ignored()...)
	if g.Strict {
		policy.Strict = true
	}
	s.store = st
	return s, nil
}

// run opens a session, calls fn and closes the session again. Changes are
// only written when fn succeeds.
func (g *Globals) run(kctx *kong.Context, name string, fn func(*session) error) error {
	s, err := g.open(kctx, name)
	if err != nil {
		return err
	}
	err = fn(s)
	if cerr := s.close(err == nil); err == nil {
		err = cerr
	}
	return err
}

// close writes the telemetry report, flushing the store first when flush is
// set.
func (s *session) close(flush bool) error {
	var err error
	if flush {
		err = s.store.Close(s.ctx)
	}
	if s.collector != nil {
		s.timer.End()
		_, _ = fmt.Fprintln(s.stderr)
		s.collector.Report(s.stderr, nil)
	}
	return err
}

// Logger builds the logger commands use, writing text to w at the chosen
// level.
func (g *Globals) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(g.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (g *Globals) ignored() []warn.Class {
	out := make([]warn.Class, 0, len(g.Ignore))
	for _, c := range g.Ignore {
		out = append(out, warn.Class(c))
	}
	return out
}

// AfterApply validates the global flags once kong has parsed them.
func (g *Globals) AfterApply() error {
	for _, c := range g.Ignore {
		if _, err := warn.ParseClass(c); err != nil {
			return err
		}
	}
	return nil
}
