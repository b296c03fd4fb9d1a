package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	tally "github.com/robinvdvleuten/tally/cli"
)

var cli struct {
	Version kong.VersionFlag `help:"Show version information"`
	tally.Commands
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("tally"),
		kong.Description("A plain-text double-entry ledger, one file per year."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()

	var cmdErr *tally.CommandError
	if errors.As(err, &cmdErr) {
		os.Exit(cmdErr.ExitCode())
	}
	ctx.FatalIfErrorf(err)
}

func buildVersion() string {
	version := tally.Version
	if version == "" {
		version = "dev"
	}
	if tally.CommitSHA == "" {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, tally.CommitSHA)
}
