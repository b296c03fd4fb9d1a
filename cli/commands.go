package cli

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Dir       string   `help:"Ledger directory holding the year files." short:"d" default:"." env:"TALLY_DIR" type:"path"`
	Telemetry bool     `help:"Show timing telemetry for operations."`
	LogLevel  string   `help:"Minimum level of log messages." enum:"debug,info,warn,error" default:"warn"`
	Ignore    []string `help:"Warning classes to ignore (imbalanced-entries, malformed-amounts, unknown-directives, invalid-metadata, reassigned-uuids)." placeholder:"CLASS"`
	Strict    bool     `help:"Fail on imbalanced entries instead of booking the difference to Imbalance."`
	Yes       bool     `help:"Answer yes to every prompt." short:"y"`
}

type Commands struct {
	Globals

	Balance  BalanceCmd  `cmd:"" help:"Show account balances." default:"withargs"`
	Register RegisterCmd `cmd:"" help:"List entries touching the given accounts."`
	Trend    TrendCmd    `cmd:"" help:"Show account totals per period."`
	Accounts AccountsCmd `cmd:"" help:"List known accounts."`
	Add      AddCmd      `cmd:"" help:"Add an entry."`
	Rm       RmCmd       `cmd:"" help:"Remove an entry."`
	Retime   RetimeCmd   `cmd:"" help:"Move an entry to another date."`
	Price    PriceCmd    `cmd:"" help:"Record an exchange rate."`
	Convert  ConvertCmd  `cmd:"" help:"Convert an amount to another currency."`
	Check    CheckCmd    `cmd:"" help:"Load every year and report problems."`
	Format   FormatCmd   `cmd:"" help:"Rewrite year files in canonical form."`
	Watch    WatchCmd    `cmd:"" help:"Show balances and refresh them when year files change."`
	Debug    DebugCmd    `cmd:"" help:"Debugging utilities."`
}
