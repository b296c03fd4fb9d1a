package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"
	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/money"
	"github.com/shopspring/decimal"
)

const coffeeYear = "2021-01-01 Coffee #aaaaaaaa\n" +
	"  \tExpense.Coffee\t3.50\n" +
	"  \tAssets.Cash\t-3.50\n"

type result struct {
	stdout string
	stderr string
	err    error
}

// runCLI parses args against a fresh command tree rooted at dir and runs the
// selected command.
func runCLI(t *testing.T, dir string, args ...string) result {
	t.Helper()

	// No terminal to answer prompts.
	confirm = func(string) (bool, error) { return false, nil }

	var cmds Commands
	var stdout, stderr bytes.Buffer
	parser, err := kong.New(&cmds,
		kong.Name("tally"),
		kong.Writers(&stdout, &stderr),
		kong.Exit(func(int) {}),
		kong.Bind(&cmds.Globals),
	)
	assert.NoError(t, err)

	kctx, err := parser.Parse(append([]string{"--dir", dir}, args...))
	if err != nil {
		return result{stdout.String(), stderr.String(), err}
	}
	err = kctx.Run()
	return result{stdout.String(), stderr.String(), err}
}

func writeYear(t *testing.T, dir string, year int, content string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, yearName(year)), []byte(content), 0o644))
}

func readYear(t *testing.T, dir string, year int) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, yearName(year)))
	assert.NoError(t, err)
	return string(data)
}

func yearName(year int) string {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + ".ledger"
}

func assertExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var cerr *CommandError
	assert.True(t, errors.As(err, &cerr), "expected a command error, got %v", err)
	assert.Equal(t, code, cerr.ExitCode())
}

func TestAddAndReport(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, dir, "add", "--date", "2021-03-01", "-m", "where=Corner shop", "Lunch", "Expense.Food=12", "Assets.Cash")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Added #")
	assert.Contains(t, res.stdout, "2021-03-01 Lunch #")

	text := readYear(t, dir, 2021)
	assert.Contains(t, text, "2021-03-01 Lunch #")
	assert.Contains(t, text, `;where:"Corner shop"`)
	assert.Contains(t, text, "\tAssets.Cash\t-12.00\n")

	t.Run("balance", func(t *testing.T) {
		res := runCLI(t, dir, "balance")
		assert.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Expense")
		assert.Contains(t, res.stdout, "  Food")
		assert.Contains(t, res.stdout, "12.00")
		assert.Contains(t, res.stdout, "-12.00")
		assert.Contains(t, res.stdout, "Total")
	})

	t.Run("flat balance", func(t *testing.T) {
		res := runCLI(t, dir, "balance", "--flat", "exp")
		assert.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Expense.Food")
		assert.NotContains(t, res.stdout, "Assets")
	})

	t.Run("default command", func(t *testing.T) {
		res := runCLI(t, dir, "as")
		assert.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Cash")
		assert.NotContains(t, res.stdout, "Expense")
	})

	t.Run("register", func(t *testing.T) {
		res := runCLI(t, dir, "register", "--where", "x")
		assert.Error(t, res.err)

		res = runCLI(t, dir, "register", "-m", "where=^Corner", "exp")
		assert.NoError(t, res.err)
		assert.Contains(t, res.stdout, "2021-03-01 Lunch #")
		assert.Contains(t, res.stdout, "where: Corner shop")

		res = runCLI(t, dir, "register", "-D", "dinner")
		assert.NoError(t, res.err)
		assert.Contains(t, res.stderr, "No matching entries")
	})

	t.Run("accounts", func(t *testing.T) {
		res := runCLI(t, dir, "accounts", "exp")
		assert.NoError(t, res.err)
		assert.Equal(t, "Expense.Food\n", res.stdout)
	})
}

func TestMissingLedger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "books")

	// Without a terminal nothing is created unless --yes is given.
	res := runCLI(t, dir, "accounts")
	assert.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no ledger")
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	res = runCLI(t, dir, "--yes", "accounts")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Created ledger")
	info, err := os.Stat(dir)
	assert.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRmAndRetime(t *testing.T) {
	dir := t.TempDir()
	writeYear(t, dir, 2021, coffeeYear)

	res := runCLI(t, dir, "retime", "#aaaaaaaa", "2022-05-01")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Moved #aaaaaaaa from 2021-01-01 to 2022-05-01")
	assert.Equal(t, "", readYear(t, dir, 2021))
	assert.Contains(t, readYear(t, dir, 2022), "2022-05-01 Coffee #aaaaaaaa\n")

	res = runCLI(t, dir, "rm", "aaaaaaaa")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Kept #aaaaaaaa")
	assert.Contains(t, readYear(t, dir, 2022), "#aaaaaaaa")

	res = runCLI(t, dir, "--yes", "rm", "aaaaaaaa")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Removed #aaaaaaaa")
	assert.Equal(t, "", readYear(t, dir, 2022))

	res = runCLI(t, dir, "--yes", "rm", "aaaaaaaa")
	assertExitCode(t, res.err, 1)
	assert.Contains(t, res.stderr, "entry not found")
}

func TestPriceAndConvert(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, dir, "price", "--date", "2021-01-01", "EUR", "2")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Recorded P 2021-01-01 EUR")

	data, err := os.ReadFile(filepath.Join(dir, "prices.ledger"))
	assert.NoError(t, err)
	assert.Contains(t, string(data), "P 2021-01-01 EUR ")

	res = runCLI(t, dir, "convert", "--at", "2021-06-01", "10 EUR")
	assert.NoError(t, res.err)
	assert.Equal(t, "20.00\n", res.stdout)

	res = runCLI(t, dir, "convert", "--at", "2020-06-01", "10 EUR")
	assertExitCode(t, res.err, 1)

	res = runCLI(t, dir, "convert", "--path", "10 GBP")
	assertExitCode(t, res.err, 1)
}

func TestCheck(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		dir := t.TempDir()
		writeYear(t, dir, 2021, coffeeYear)

		res := runCLI(t, dir, "check")
		assert.NoError(t, res.err)
		assert.Contains(t, res.stdout, "Checked 1 entry in 1 year")
	})

	t.Run("parse error", func(t *testing.T) {
		dir := t.TempDir()
		writeYear(t, dir, 2021, strings.Replace(coffeeYear, "\t3.50", "\t3.x0", 1))

		res := runCLI(t, dir, "check")
		assertExitCode(t, res.err, 1)
		assert.Contains(t, res.stderr, "2021.ledger:2")
		assert.Contains(t, res.stderr, "Expense.Coffee")
		assert.Contains(t, res.stderr, "parse error")
	})

	t.Run("imbalanced", func(t *testing.T) {
		dir := t.TempDir()
		writeYear(t, dir, 2021, strings.Replace(coffeeYear, "-3.50", "-3.00", 1))

		res := runCLI(t, dir, "check")
		assertExitCode(t, res.err, 1)
		assert.Contains(t, res.stderr, "does not balance")
		assert.Contains(t, res.stderr, "1 imbalanced entry found")
	})
}

func TestRunFlushesOnlyOnSuccess(t *testing.T) {
	tests := []struct {
		name    string
		fail    bool
		written bool
	}{
		{"success", false, true},
		{"failure", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			var cmds Commands
			var stdout, stderr bytes.Buffer
			parser, err := kong.New(&cmds, kong.Name("tally"), kong.Writers(&stdout, &stderr), kong.Exit(func(int) {}))
			assert.NoError(t, err)
			kctx, err := parser.Parse([]string{"--dir", dir, "accounts"})
			assert.NoError(t, err)

			err = cmds.Globals.run(kctx, "add", func(s *session) error {
				_, err := s.store.Create(s.ctx, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), "Coffee", []entry.Transfer{
					{Account: "Expense.Coffee", Amount: money.MustParse("3.50", "$")},
					{Account: "Assets.Cash"},
				}, nil)
				assert.NoError(t, err)
				if tt.fail {
					return NewCommandError(1)
				}
				return nil
			})

			if tt.fail {
				assertExitCode(t, err, 1)
			} else {
				assert.NoError(t, err)
			}
			_, statErr := os.Stat(filepath.Join(dir, yearName(2021)))
			assert.Equal(t, tt.written, statErr == nil)
		})
	}
}

func TestFormat(t *testing.T) {
	dir := t.TempDir()
	messy := strings.ReplaceAll(coffeeYear, "3.50", "3.5")
	writeYear(t, dir, 2021, messy)

	res := runCLI(t, dir, "format", "--stdout")
	assert.NoError(t, res.err)
	assert.Equal(t, coffeeYear, res.stdout)
	assert.Equal(t, messy, readYear(t, dir, 2021))

	res = runCLI(t, dir, "format")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Formatted 1 year")
	assert.Equal(t, coffeeYear, readYear(t, dir, 2021))
}

func TestTrend(t *testing.T) {
	dir := t.TempDir()
	writeYear(t, dir, 2021, coffeeYear+
		"2021-02-10 Coffee #bbbbbbbb\n"+
		"  \tExpense.Coffee\t4.00\n"+
		"  \tAssets.Cash\t-4.00\n")

	res := runCLI(t, dir, "trend", "--from", "2021-01-01", "--to", "2021-04-01", "--count", "exp")
	assert.NoError(t, res.err)
	lines := strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
	assert.Equal(t, 3, len(lines))
	assert.Contains(t, lines[0], "2021-01-01")
	assert.Contains(t, lines[0], "3.50")
	assert.Contains(t, lines[1], "4.00")
	assert.Contains(t, lines[2], "2021-03-01")

	res = runCLI(t, dir, "trend", "--from", "2021-01-01", "--to", "2021-04-01", "--cumulative", "exp")
	assert.NoError(t, res.err)
	lines = strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
	assert.Contains(t, lines[1], "7.50")
	assert.Contains(t, lines[2], "7.50")

	res = runCLI(t, dir, "trend", "--period", "fortnightly")
	assert.Error(t, res.err)
}

func TestDebugEntry(t *testing.T) {
	dir := t.TempDir()
	writeYear(t, dir, 2021, coffeeYear)

	res := runCLI(t, dir, "debug", "entry", "aaaaaaaa")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"aaaaaaaa"`)
	assert.Contains(t, res.stdout, `"Expense.Coffee"`)

	res = runCLI(t, dir, "debug", "rates")
	assert.NoError(t, res.err)
	assert.Contains(t, res.stdout, "exchange.Stats")
}

func TestGlobalsValidateIgnoreClasses(t *testing.T) {
	dir := t.TempDir()
	res := runCLI(t, dir, "--ignore", "nope", "accounts")
	assert.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown warning class")

	res = runCLI(t, dir, "--ignore", "imbalanced-entries", "accounts")
	assert.NoError(t, res.err)
}

func TestParseTransfer(t *testing.T) {
	at := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		text    string
		memo    string
		account string
		amount  string
		wantErr bool
	}{
		{text: "Expense.Food=12.50", account: "Expense.Food", amount: "12.50"},
		{text: "Assets.Bank=-10 EUR", account: "Assets.Bank", amount: "-10.00 EUR"},
		{text: "lunch:Expense.Food=3", memo: "lunch", account: "Expense.Food", amount: "3.00"},
		{text: "Assets.Cash", account: "Assets.Cash", amount: "0"},
		{text: "=12", wantErr: true},
		{text: "Expense.Food=twelve", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			tr, err := ParseTransfer(tt.text, "$", at)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.memo, tr.Memo)
			assert.Equal(t, tt.account, tr.Account)
			assert.Equal(t, tt.amount, tr.Amount.String())
		})
	}
}

func TestParseMeta(t *testing.T) {
	tests := []struct {
		text    string
		key     string
		want    entry.Value
		wantErr bool
	}{
		{text: "cups=2", key: "cups", want: entry.Number(decimal.RequireFromString("2"))},
		{text: "paid=true", key: "paid", want: entry.Bool(true)},
		{text: `where="Corner shop"`, key: "where", want: entry.String("Corner shop")},
		{text: "where=Corner shop", key: "where", want: entry.String("Corner shop")},
		{text: "note=", key: "note", want: entry.String("")},
		{text: "cups", wantErr: true},
		{text: "=2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			key, value, err := ParseMeta(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.True(t, tt.want.Equal(value), "got %s", value)
		})
	}
}

func TestRetime(t *testing.T) {
	old := time.Date(2021, 1, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2022, 5, 1, 9, 30, 0, 0, time.UTC), Retime(old, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)))

	at := time.Date(2022, 5, 1, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, at, Retime(old, at))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"2021-03-04", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2021-03-04 10:15", time.Date(2021, 3, 4, 10, 15, 0, 0, time.UTC)},
		{"March 4, 2021", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseDate(tt.text)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	today, err := ParseDate("today")
	assert.NoError(t, err)
	h, m, s := today.Clock()
	assert.Equal(t, 0, h+m+s)
	assert.Equal(t, time.UTC, today.Location())

	_, err = ParseDate("not a date")
	assert.Error(t, err)
}
