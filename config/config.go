// Package config reads and writes the JSON sidecar that sits next to the year
// files of a ledger.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/robinvdvleuten/tally/warn"
)

// Filename is the name of the sidecar inside a ledger directory.
const Filename = "tally.json"

// DefaultCurrency is the home currency of a new ledger.
const DefaultCurrency = "$"

// Config is the persisted state of a ledger that does not live in year files.
type Config struct {
	// Currency is the home currency. Amounts written without a currency
	// are in this currency.
	Currency string `json:"currency"`

	// Accounts is the sorted set of known accounts.
	Accounts []string `json:"accounts"`

	// PriceFiles are loaded into the exchange graph on open. Relative paths
	// are resolved against the ledger directory. The first one receives new
	// rates.
	PriceFiles []string `json:"price_files"`

	// Ignore lists suppressed warning classes.
	Ignore []warn.Class `json:"ignore,omitempty"`

	// Strict makes imbalanced entries fatal.
	Strict bool `json:"strict,omitempty"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		Currency:   DefaultCurrency,
		Accounts:   []string{},
		PriceFiles: []string{},
	}
}

// Load reads the sidecar at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	for _, c := range cfg.Ignore {
		if _, err := warn.ParseClass(string(c)); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	slices.Sort(cfg.Accounts)
	cfg.Accounts = slices.Compact(cfg.Accounts)
	return cfg, nil
}

// Save writes c to path through a temporary file in the same directory, so
// a failed write leaves the previous sidecar intact.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteFileAtomic replaces path with data via rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// AddAccounts merges accounts into the known set and reports whether any of
// them was new.
func (c *Config) AddAccounts(accounts ...string) bool {
	added := false
	for _, a := range accounts {
		if a == "" {
			continue
		}
		i, found := slices.BinarySearch(c.Accounts, a)
		if found {
			continue
		}
		c.Accounts = slices.Insert(c.Accounts, i, a)
		added = true
	}
	return added
}

// AddPriceFile registers a price file and reports whether it was new.
func (c *Config) AddPriceFile(path string) bool {
	if slices.Contains(c.PriceFiles, path) {
		return false
	}
	c.PriceFiles = append(c.PriceFiles, path)
	return true
}

// Policy builds the warning policy described by c.
func (c *Config) Policy(logger *slog.Logger) *warn.Policy {
	p := warn.NewPolicy(logger, c.Ignore...)
	p.Strict = c.Strict
	return p
}

type contextKey struct{}

// WithContext returns a new context with the Config attached.
func (c *Config) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves the Config from context.
// Returns a default Config if not found.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return New()
}
