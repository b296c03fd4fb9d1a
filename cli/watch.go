package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fsnotify/fsnotify"

	"github.com/robinvdvleuten/tally/config"
	"github.com/robinvdvleuten/tally/loader"
)

// Editors often write files in several steps.
const debounceDelay = 100 * time.Millisecond

type WatchCmd struct {
	BalanceCmd `embed:""`
}

func (cmd *WatchCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	render := func() error {
		err := globals.run(ctx, "balance", func(s *session) error {
			printInfof(ctx.Stderr, "%s", time.Now().Format(time.TimeOnly))
			return cmd.report(s, ctx.Stdout)
		})
		var cerr *CommandError
		if errors.As(err, &cerr) {
			return nil
		}
		return err
	}

	// The first render creates the ledger directory when needed.
	if err := render(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(globals.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", globals.Dir, err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-runCtx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Remove and rename are common in atomic saves.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !watched(event.Name) {
				continue
			}
			debounce = time.After(debounceDelay)

		case <-debounce:
			debounce = nil
			_, _ = fmt.Fprintln(ctx.Stdout)
			if err := render(); err != nil {
				printError(ctx.Stderr, err.Error())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printError(ctx.Stderr, fmt.Sprintf("file watcher error: %v", err))
		}
	}
}

// watched reports whether a change to path can change a report.
func watched(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, loader.Extension) || name == config.Filename
}
