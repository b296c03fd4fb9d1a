// Package loader finds and reads the files of a ledger directory: one year
// file per calendar year and any number of price files.
//
// Year files are named after their year (2021.ledger). Price files are listed
// in the ledger config; relative paths resolve against the ledger directory,
// and a file listed twice, under any spelling, is only read once.
//
// Example usage:
//
//	l := loader.New(loader.WithHome("EUR"))
//	years, err := l.Discover(dir)
//	year, err := l.LoadYear(ctx, loader.YearPath(dir, 2021))
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/parser"
	"github.com/robinvdvleuten/tally/warn"
)

// Extension is the suffix of year files.
const Extension = ".ledger"

// Loader reads ledger files with a shared parser configuration.
//
// Configure the loader using functional options passed to New:
//
//	loader := New(WithHome("$"), WithPolicy(policy))
type Loader struct {
	// Home is the currency of amounts written without one.
	Home string

	// Policy decides which problems abort a load.
	Policy *warn.Policy

	// Converter balances entries that span several currencies.
	Converter money.Converter

	// Interner is shared by every file the loader parses.
	Interner *parser.Interner
}

// Option configures how files are loaded.
type Option func(*Loader)

// WithHome sets the home currency.
func WithHome(currency string) Option {
	return func(l *Loader) {
		l.Home = currency
	}
}

// WithPolicy sets the warning policy.
func WithPolicy(policy *warn.Policy) Option {
	return func(l *Loader) {
		l.Policy = policy
	}
}

// WithConverter sets the exchange rates used when balancing entries.
func WithConverter(conv money.Converter) Option {
	return func(l *Loader) {
		l.Converter = conv
	}
}

// WithInterner shares account names with other loaders.
func WithInterner(i *parser.Interner) Option {
	return func(l *Loader) {
		l.Interner = i
	}
}

// New creates a new Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.Interner == nil {
		l.Interner = parser.NewInterner(256)
	}
	return l
}

// YearPath returns the year file of year inside dir.
func YearPath(dir string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%04d%s", year, Extension))
}

// ParseYearFilename extracts the year from a year file name.
func ParseYearFilename(name string) (int, bool) {
	base, ok := strings.CutSuffix(filepath.Base(name), Extension)
	if !ok || len(base) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(base)
	if err != nil || year < 0 {
		return 0, false
	}
	return year, true
}

// Discover lists the years that have a year file in dir, sorted.
func (l *Loader) Discover(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var years []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if year, ok := ParseYearFilename(e.Name()); ok {
			years = append(years, year)
		}
	}
	sort.Ints(years)
	return years, nil
}

func (l *Loader) parserOptions() []parser.Option {
	return []parser.Option{
		parser.WithHome(l.Home),
		parser.WithPolicy(l.Policy),
		parser.WithConverter(l.Converter),
		parser.WithInterner(l.Interner),
	}
}

// LoadYear parses the year file at filename. A missing file is an empty
// year.
func (l *Loader) LoadYear(ctx context.Context, filename string) (*parser.Year, error) {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return &parser.Year{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return parser.ParseYear(ctx, filename, bytes.NewReader(data), l.parserOptions()...)
}

// LoadPrices parses every price file in files, resolving relative paths
// against dir. Prices are returned in file order.
func (l *Loader) LoadPrices(ctx context.Context, dir string, files []string) ([]parser.Price, error) {
	visited := make(map[string]bool, len(files))

	var prices []parser.Price
	for _, name := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		path := ResolvePath(dir, name)
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", path, err)
		}
		if visited[absPath] {
			continue
		}
		visited[absPath] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		parsed, err := parser.ParsePrices(ctx, path, bytes.NewReader(data), l.parserOptions()...)
		if err != nil {
			return nil, err
		}
		prices = append(prices, parsed...)
	}
	return prices, nil
}

// ResolvePath resolves name relative to dir unless it is absolute.
func ResolvePath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
