package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/loader"
	"github.com/robinvdvleuten/tally/parser"
	"github.com/robinvdvleuten/tally/telemetry"
	"github.com/robinvdvleuten/tally/warn"
	"golang.org/x/sync/errgroup"
)

// EnsureOpen parses the unopened years among years. Years without a file
// open empty. Files are parsed concurrently, but the store only changes once
// every file has parsed: on error no year is opened.
//
// An entry whose time lies outside the year of its file moves to its own
// year, which is loaded as well when it has a file. Both years become dirty.
// An entry whose uuid is already used in another year gets a new one.
func (s *Store) EnsureOpen(ctx context.Context, years ...int) error {
	pending := s.unopened(years, nil)
	if len(pending) == 0 {
		return nil
	}

	timer := telemetry.StartTimer(ctx, fmt.Sprintf("store.load %d years", len(pending)))
	defer timer.End()
	ctx = telemetry.WithTimer(ctx, timer)

	parsed := make(map[int]*parser.Year)
	for len(pending) > 0 {
		results, err := s.parseYears(ctx, pending)
		if err != nil {
			return err
		}

		var spill []int
		for i, y := range pending {
			parsed[y] = results[i]
			for _, e := range results[i].Entries {
				if ey := e.Year(); ey != y {
					spill = append(spill, ey)
				}
			}
		}
		pending = s.unopened(spill, parsed)
	}

	s.commit(parsed)
	return nil
}

// unopened filters years down to the sorted, distinct years that still need
// parsing.
func (s *Store) unopened(years []int, parsed map[int]*parser.Year) []int {
	seen := make(map[int]bool, len(years))
	var out []int
	for _, y := range years {
		if seen[y] || s.State(y) != Unopened {
			continue
		}
		if _, ok := parsed[y]; ok {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func (s *Store) parseYears(ctx context.Context, years []int) ([]*parser.Year, error) {
	results := make([]*parser.Year, len(years))

	g, ctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, y := range years {
		g.Go(func() error {
			if _, ok := s.years[y]; !ok {
				results[i] = &parser.Year{}
				return nil
			}
			year, err := s.loader.LoadYear(ctx, loader.YearPath(s.dir, y))
			if err != nil {
				return err
			}
			results[i] = year
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// commit opens every parsed year. It cannot fail.
func (s *Store) commit(parsed map[int]*parser.Year) {
	years := make([]int, 0, len(parsed))
	for y := range parsed {
		years = append(years, y)
		s.years[y] = &bucket{state: Opened}
	}
	sort.Ints(years)

	type misplaced struct {
		from int
		e    *entry.Entry
	}
	var moves []misplaced

	for _, y := range years {
		year := parsed[y]
		if year.Dirty {
			s.markDirty(y)
		}
		for _, e := range year.Entries {
			if s.taken(e.UUID) {
				old := e.UUID
				e.UUID = entry.NewUUID(s.taken)
				s.policy.Report(warn.ReassignedUUIDs, "assigned a new uuid",
					slog.String("uuid", e.UUID),
					slog.String("previous", old),
					slog.String("date", e.Time.Format(time.DateOnly)),
					slog.String("description", e.Description),
				)
				s.markDirty(y)
			}
			s.learnAccounts(e)

			if e.Year() != y {
				moves = append(moves, misplaced{from: y, e: e})
				s.index[e.UUID] = e.Year()
				continue
			}
			s.append(e)
		}
	}

	// Misplaced entries go in after the entries that belong to the year.
	for _, m := range moves {
		s.logger.Warn("moved entry to the file of its year",
			slog.String("uuid", m.e.UUID),
			slog.Int("from", m.from),
			slog.Int("to", m.e.Year()),
		)
		s.markDirty(m.from)
		s.markDirty(m.e.Year())
		s.insert(m.e)
	}
}

// append adds e at the end of its year, keeping file order on load.
func (s *Store) append(e *entry.Entry) {
	b := s.years[e.Year()]
	b.entries = append(b.entries, e)
	s.index[e.UUID] = e.Year()
}
