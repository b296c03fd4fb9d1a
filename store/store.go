// Package store holds the entries of a ledger directory in memory, grouped by
// calendar year, and writes changed years back to disk.
//
// Years are loaded lazily. A year starts unopened, becomes opened once its
// file has been parsed, and turns dirty when one of its entries changes.
// Flush rewrites every dirty year file in full and returns it to opened.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/robinvdvleuten/tally/config"
	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/exchange"
	"github.com/robinvdvleuten/tally/formatter"
	"github.com/robinvdvleuten/tally/loader"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/parser"
	"github.com/robinvdvleuten/tally/telemetry"
	"github.com/robinvdvleuten/tally/warn"
)

// DefaultPriceFile receives rates when the config lists no price file.
const DefaultPriceFile = "prices.ledger"

var (
	// ErrNoLedger is returned by Open when the directory does not exist.
	ErrNoLedger = errors.New("no ledger")

	// ErrNotFound is returned when no entry has the requested uuid.
	ErrNotFound = errors.New("entry not found")

	// ErrDuplicateUUID is returned by Push when the uuid is already taken.
	ErrDuplicateUUID = errors.New("duplicate uuid")
)

// State is the lifecycle state of a year.
type State int

const (
	Unopened State = iota
	Opened
	Dirty
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Opened:
		return "opened"
	case Dirty:
		return "dirty"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type bucket struct {
	state   State
	entries []*entry.Entry
}

// Store is an in-memory view of a ledger directory. It is not safe for
// concurrent use; a process has one mutator.
type Store struct {
	dir         string
	cfg         *config.Config
	configDirty bool

	logger      *slog.Logger
	policy      *warn.Policy
	concurrency int

	loader    *loader.Loader
	formatter *formatter.Formatter
	graph     *exchange.Graph

	years map[int]*bucket
	index map[string]int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for warnings and progress.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPolicy overrides the warning policy built from the config.
func WithPolicy(policy *warn.Policy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// WithConcurrency limits how many year files are parsed at once.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		s.concurrency = n
	}
}

// Open reads the config of the ledger in dir, discovers its year files and
// loads its price files. No year file is parsed yet.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	timer := telemetry.StartTimer(ctx, "store.open")
	defer timer.End()

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoLedger, dir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoLedger, dir)
	}

	s := &Store{
		dir:         dir,
		concurrency: 4,
		formatter:   formatter.New(),
		graph:       exchange.NewGraph(),
		years:       make(map[int]*bucket),
		index:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.cfg, err = config.Load(s.configPath())
	if err != nil {
		return nil, err
	}
	if s.policy == nil {
		s.policy = s.cfg.Policy(s.logger)
	}
	s.loader = loader.New(
		loader.WithHome(s.cfg.Currency),
		loader.WithPolicy(s.policy),
		loader.WithConverter(s.graph),
	)

	years, err := s.loader.Discover(dir)
	if err != nil {
		return nil, err
	}
	for _, y := range years {
		s.years[y] = &bucket{state: Unopened}
	}

	ptimer := timer.Child("store.prices")
	prices, err := s.loader.LoadPrices(ctx, dir, s.cfg.PriceFiles)
	ptimer.End()
	if err != nil {
		return nil, err
	}
	if err := s.graph.Ingest(parser.Rates(prices)); err != nil {
		return nil, err
	}

	s.logger.Debug("opened ledger", slog.String("dir", dir), slog.Int("years", len(years)), slog.Int("prices", len(prices)))
	return s, nil
}

// Dir is the ledger directory.
func (s *Store) Dir() string { return s.dir }

// Config is the ledger config. Changes to it are saved by the next Flush
// only when MarkConfigDirty is called.
func (s *Store) Config() *config.Config { return s.cfg }

// MarkConfigDirty schedules the config for saving on the next Flush.
func (s *Store) MarkConfigDirty() { s.configDirty = true }

// Policy is the warning policy entries are balanced under.
func (s *Store) Policy() *warn.Policy { return s.policy }

// Home is the home currency.
func (s *Store) Home() string { return s.cfg.Currency }

// Exchange is the exchange graph built from the price files.
func (s *Store) Exchange() *exchange.Graph { return s.graph }

func (s *Store) configPath() string {
	return loader.ResolvePath(s.dir, config.Filename)
}

// State returns the lifecycle state of year. Years without a file that were
// never written to are unopened.
func (s *Store) State(year int) State {
	if b, ok := s.years[year]; ok {
		return b.state
	}
	return Unopened
}

// Years returns every known year, sorted.
func (s *Store) Years() []int {
	years := make([]int, 0, len(s.years))
	for y := range s.years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// YearsSpanning returns the known years that overlap [from, to). A zero from
// or to leaves that side open.
func (s *Store) YearsSpanning(from, to time.Time) []int {
	var out []int
	for _, y := range s.Years() {
		if !from.IsZero() && y < from.Year() {
			continue
		}
		if !to.IsZero() {
			start := time.Date(y, time.January, 1, 0, 0, 0, 0, to.Location())
			if !start.Before(to) {
				continue
			}
		}
		out = append(out, y)
	}
	return out
}

// Entries returns the entries of an opened year in storage order. The slice
// is owned by the store.
func (s *Store) Entries(year int) []*entry.Entry {
	if b, ok := s.years[year]; ok {
		return b.entries
	}
	return nil
}

// Accounts returns every known account, sorted.
func (s *Store) Accounts() []string {
	return append([]string(nil), s.cfg.Accounts...)
}

// Lookup finds the entry with uuid, opening every year if needed.
func (s *Store) Lookup(ctx context.Context, uuid string) (*entry.Entry, error) {
	if e, ok := s.find(uuid); ok {
		return e, nil
	}
	if err := s.EnsureOpen(ctx, s.Years()...); err != nil {
		return nil, err
	}
	if e, ok := s.find(uuid); ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: #%s", ErrNotFound, uuid)
}

func (s *Store) find(uuid string) (*entry.Entry, bool) {
	year, ok := s.index[uuid]
	if !ok {
		return nil, false
	}
	for _, e := range s.years[year].entries {
		if e.UUID == uuid {
			return e, true
		}
	}
	return nil, false
}

func (s *Store) taken(uuid string) bool {
	_, ok := s.index[uuid]
	return ok
}

// Push adds e to the bucket of its year, balancing it first. An empty uuid
// is assigned.
func (s *Store) Push(ctx context.Context, e *entry.Entry) error {
	if err := s.EnsureOpen(ctx, e.Year()); err != nil {
		return err
	}
	if e.UUID == "" {
		e.UUID = entry.NewUUID(s.taken)
	}
	if !entry.ValidUUID(e.UUID) {
		return fmt.Errorf("%w: malformed uuid %q", entry.ErrInvalidEntry, e.UUID)
	}
	if s.taken(e.UUID) {
		return fmt.Errorf("%w: #%s", ErrDuplicateUUID, e.UUID)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := e.Balance(s.policy, s.graph); err != nil {
		return err
	}

	s.insert(e)
	s.markDirty(e.Year())
	s.learnAccounts(e)
	return nil
}

// Create builds a new entry and pushes it.
func (s *Store) Create(ctx context.Context, t time.Time, description string, transfers []entry.Transfer, meta entry.Metadata) (*entry.Entry, error) {
	e, err := entry.New(t, description, transfers, meta, s.policy, s.graph)
	if err != nil {
		return nil, err
	}
	e.UUID = ""
	if err := s.Push(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Modify replaces the stored entry that has the uuid of e with e. When the
// time of e falls in another year the entry moves there; both years become
// dirty.
func (s *Store) Modify(ctx context.Context, e *entry.Entry) error {
	old, err := s.Lookup(ctx, e.UUID)
	if err != nil {
		return err
	}
	oldYear := s.index[e.UUID]
	if err := s.EnsureOpen(ctx, e.Year()); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := e.Balance(s.policy, s.graph); err != nil {
		return err
	}

	s.detach(oldYear, old)
	s.insert(e)
	s.markDirty(oldYear)
	s.markDirty(e.Year())
	s.learnAccounts(e)
	return nil
}

// Remove deletes the entry with uuid and returns it.
func (s *Store) Remove(ctx context.Context, uuid string) (*entry.Entry, error) {
	e, err := s.Lookup(ctx, uuid)
	if err != nil {
		return nil, err
	}
	year := s.index[uuid]
	s.detach(year, e)
	s.markDirty(year)
	return e, nil
}

// insert places e in its year after every entry with an equal or earlier
// time. The year must be open.
func (s *Store) insert(e *entry.Entry) {
	year := e.Year()
	b := s.years[year]
	if b == nil {
		b = &bucket{state: Opened}
		s.years[year] = b
	}
	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Time.After(e.Time)
	})
	b.entries = append(b.entries, nil)
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = e
	s.index[e.UUID] = year
}

func (s *Store) detach(year int, e *entry.Entry) {
	b := s.years[year]
	for i, other := range b.entries {
		if other == e {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	delete(s.index, e.UUID)
}

func (s *Store) markDirty(year int) {
	b := s.years[year]
	if b == nil {
		b = &bucket{}
		s.years[year] = b
	}
	b.state = Dirty
}

func (s *Store) learnAccounts(e *entry.Entry) {
	if s.cfg.AddAccounts(e.Accounts()...) {
		s.configDirty = true
	}
}

// AddRate records a rate in the exchange graph and appends it to the primary
// price file. The config is saved when the price file is new to it.
func (s *Store) AddRate(ctx context.Context, from, to string, rate money.Decimal, at time.Time) error {
	timer := telemetry.StartTimer(ctx, "store.rate")
	defer timer.End()

	r := exchange.Rate{From: from, To: to, Rate: rate, At: at}
	if err := s.graph.AddRate(from, to, rate, at); err != nil {
		return err
	}

	name := DefaultPriceFile
	if len(s.cfg.PriceFiles) > 0 {
		name = s.cfg.PriceFiles[0]
	}
	path := loader.ResolvePath(s.dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.WriteString(formatter.FormatPrice(r) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if s.cfg.AddPriceFile(name) {
		s.configDirty = true
	}
	if s.configDirty {
		if err := s.cfg.Save(s.configPath()); err != nil {
			return err
		}
		s.configDirty = false
	}
	return nil
}

// Flush rewrites every dirty year and saves the config when it changed.
func (s *Store) Flush(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, "store.flush")
	defer timer.End()

	for _, year := range s.Years() {
		b := s.years[year]
		if b.state != Dirty {
			continue
		}

		var buf strings.Builder
		if err := s.formatter.FormatYear(b.entries, &buf); err != nil {
			return err
		}
		path := loader.YearPath(s.dir, year)
		if err := config.WriteFileAtomic(path, []byte(buf.String())); err != nil {
			return err
		}
		b.state = Opened
		s.logger.Debug("wrote year", slog.Int("year", year), slog.Int("entries", len(b.entries)))
	}

	if s.configDirty {
		if err := s.cfg.Save(s.configPath()); err != nil {
			return err
		}
		s.configDirty = false
	}
	return nil
}

// Rewrite opens the given years, or every known year when none are given, and
// marks them dirty so the next flush writes them in canonical form.
func (s *Store) Rewrite(ctx context.Context, years ...int) error {
	if len(years) == 0 {
		years = s.Years()
	}
	if err := s.EnsureOpen(ctx, years...); err != nil {
		return err
	}
	for _, year := range years {
		s.markDirty(year)
	}
	return nil
}

// Close flushes the store.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}
