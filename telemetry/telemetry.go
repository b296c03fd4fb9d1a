// Package telemetry records how long ledger operations take, as a tree of
// nested timers carried through a context.
//
//	collector := telemetry.NewTimingCollector()
//	ctx := telemetry.WithCollector(context.Background(), collector)
//
//	timer := telemetry.StartTimer(ctx, "store.load")
//	ctx = telemetry.WithTimer(ctx, timer)
//	// parse years; their timers nest under store.load
//	timer.End()
//
//	collector.Report(os.Stderr, nil)
//
// Without a collector in the context every timer is a no-op.
package telemetry

import (
	"context"
	"io"

	"github.com/robinvdvleuten/tally/output"
)

type collectorKey struct{}

type timerKey struct{}

// Collector gathers timers and reports them.
type Collector interface {
	// Start begins a timer at the top of the tree.
	Start(name string) Timer

	// Report writes the collected timings. styles may be nil for plain text.
	Report(w io.Writer, styles *output.Styles)
}

// Timer measures one operation.
type Timer interface {
	// End stops the timer.
	End()

	// Child starts a timer nested under this one.
	Child(name string) Timer
}

// WithCollector returns a context carrying collector.
func WithCollector(ctx context.Context, collector Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, collector)
}

// FromContext returns the collector carried by ctx, or a no-op collector.
func FromContext(ctx context.Context) Collector {
	if collector, ok := ctx.Value(collectorKey{}).(Collector); ok {
		return collector
	}
	return noOpCollector{}
}

// WithTimer returns a context in which StartTimer nests under timer.
func WithTimer(ctx context.Context, timer Timer) context.Context {
	return context.WithValue(ctx, timerKey{}, timer)
}

// StartTimer starts a timer nested under the context's current timer, or at
// the top of the context's collector when there is none.
func StartTimer(ctx context.Context, name string) Timer {
	if parent, ok := ctx.Value(timerKey{}).(Timer); ok {
		return parent.Child(name)
	}
	return FromContext(ctx).Start(name)
}
