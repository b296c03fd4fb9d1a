// Package exchange holds the currency graph used to convert money between
// currencies as of a point in time.
//
// Currencies are nodes. Every pair with at least one known rate is joined by an
// undirected edge carrying a time-ordered history of samples in both directions;
// adding A→B at rate r also records B→A at 1/r. Conversion follows the path with
// the fewest hops and multiplies, per edge, the most recent sample on or before
// the requested time.
package exchange

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robinvdvleuten/tally/money"
)

var (
	// ErrNoConversionPath is wrapped when two currencies are in different components.
	ErrNoConversionPath = errors.New("no conversion path")

	// ErrNoRateBeforeDate is wrapped when an edge on the path has no sample at or
	// before the requested time.
	ErrNoRateBeforeDate = errors.New("no rate before date")

	// ErrInvalidRate is wrapped when AddRate rejects a rate.
	ErrInvalidRate = errors.New("invalid rate")
)

// ConversionError describes a failed Resolve.
type ConversionError struct {
	From string
	To   string
	At   time.Time
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s on %s: %v", e.From, e.To, e.At.Format(time.DateOnly), e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Rate is a single price directive: one unit of From is worth Rate units of To
// from At onwards.
type Rate struct {
	From string
	To   string
	Rate money.Decimal
	At   time.Time
}

// Sample is one point of an edge's rate history.
type Sample struct {
	At   time.Time
	Rate money.Decimal
}

// Graph is an undirected graph of currencies with per-direction rate histories.
// It is not safe for concurrent mutation.
type Graph struct {
	// adjacency maps a currency to the set of currencies it has rates with.
	adjacency map[string]map[string]struct{}

	// samples maps an ordered pair to its time-sorted history.
	samples map[[2]string][]Sample

	// resolved memoizes Resolve results until the next AddRate.
	resolved *cache.Cache
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		adjacency: make(map[string]map[string]struct{}),
		samples:   make(map[[2]string][]Sample),
		resolved:  cache.New(cache.NoExpiration, 0),
	}
}

// AddRate records that one unit of a is worth rate units of b from at onwards,
// together with the reciprocal sample for b→a.
func (g *Graph) AddRate(a, b string, rate money.Decimal, at time.Time) error {
	if a == b {
		return fmt.Errorf("%w: rate between %s and itself", ErrInvalidRate, a)
	}
	if rate.IsZero() {
		return fmt.Errorf("%w: rate %s→%s on %s must be non-zero", ErrInvalidRate, a, b, at.Format(time.DateOnly))
	}

	inverse, err := money.One.Div(rate)
	if err != nil {
		return err
	}

	g.link(a, b)
	g.link(b, a)
	g.insert([2]string{a, b}, Sample{At: at, Rate: rate})
	g.insert([2]string{b, a}, Sample{At: at, Rate: inverse})

	g.resolved.Flush()
	return nil
}

// Ingest adds every rate in order, stopping at the first invalid one.
func (g *Graph) Ingest(rates []Rate) error {
	for _, r := range rates {
		if err := g.AddRate(r.From, r.To, r.Rate, r.At); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) link(a, b string) {
	if g.adjacency[a] == nil {
		g.adjacency[a] = make(map[string]struct{})
	}
	g.adjacency[a][b] = struct{}{}
}

// insert keeps the series sorted by time. A sample at an existing time
// replaces the earlier one.
func (g *Graph) insert(key [2]string, s Sample) {
	series := g.samples[key]
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].At.Before(s.At)
	})
	if i < len(series) && series[i].At.Equal(s.At) {
		series[i] = s
		return
	}
	series = append(series, Sample{})
	copy(series[i+1:], series[i:])
	series[i] = s
	g.samples[key] = series
}

// Resolve returns how many units of b one unit of a is worth at time at.
func (g *Graph) Resolve(a, b string, at time.Time) (money.Decimal, error) {
	if a == b {
		return money.One, nil
	}

	key := a + "\x00" + b + "\x00" + at.Format(time.RFC3339Nano)
	if v, ok := g.resolved.Get(key); ok {
		return v.(money.Decimal), nil
	}

	path, err := g.Path(a, b)
	if err != nil {
		return money.Zero, &ConversionError{From: a, To: b, At: at, Err: err}
	}

	rate := money.One
	for i := 0; i+1 < len(path); i++ {
		r, ok := g.lookup(path[i], path[i+1], at)
		if !ok {
			return money.Zero, &ConversionError{
				From: a,
				To:   b,
				At:   at,
				Err:  fmt.Errorf("%w: %s→%s", ErrNoRateBeforeDate, path[i], path[i+1]),
			}
		}
		rate = rate.Mul(r)
	}

	g.resolved.SetDefault(key, rate)
	return rate, nil
}

// lookup returns the latest sample for a→b at or before at.
func (g *Graph) lookup(a, b string, at time.Time) (money.Decimal, bool) {
	series := g.samples[[2]string{a, b}]
	i := sort.Search(len(series), func(i int) bool {
		return series[i].At.After(at)
	})
	if i == 0 {
		return money.Zero, false
	}
	return series[i-1].Rate, true
}

// Path returns the currencies on the shortest path from a to b, both ends
// included. Among paths of equal length the one whose currencies come first
// lexicographically at each step wins.
func (g *Graph) Path(a, b string) ([]string, error) {
	if a == b {
		return []string{a}, nil
	}
	if _, ok := g.adjacency[a]; !ok {
		return nil, ErrNoConversionPath
	}

	parent := map[string]string{a: ""}
	queue := []string{a}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.neighbours(current) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current

			if next == b {
				path := []string{b}
				for c := current; c != ""; c = parent[c] {
					path = append(path, c)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, nil
			}

			queue = append(queue, next)
		}
	}

	return nil, ErrNoConversionPath
}

func (g *Graph) neighbours(c string) []string {
	out := make([]string, 0, len(g.adjacency[c]))
	for n := range g.adjacency[c] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Samples returns a copy of the a→b history in time order.
func (g *Graph) Samples(a, b string) []Sample {
	series := g.samples[[2]string{a, b}]
	out := make([]Sample, len(series))
	copy(out, series)
	return out
}

// Currencies returns every currency that has at least one rate, sorted.
func (g *Graph) Currencies() []string {
	out := make([]string, 0, len(g.adjacency))
	for c := range g.adjacency {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Stats describes the size of a Graph.
type Stats struct {
	Currencies int
	Edges      int
	Samples    int
	Cached     int
}

// Stats returns the size of the graph. Edges are counted once per undirected
// pair; samples once per direction.
func (g *Graph) Stats() Stats {
	s := Stats{Currencies: len(g.adjacency), Cached: g.resolved.ItemCount()}
	for _, ns := range g.adjacency {
		s.Edges += len(ns)
	}
	s.Edges /= 2
	for _, series := range g.samples {
		s.Samples += len(series)
	}
	return s
}
