// Package warn classifies the recoverable problems found while loading or
// building ledger data and decides, per class, whether to report them, ignore
// them or treat them as fatal.
package warn

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Class names a kind of warning. Classes can be suppressed individually.
type Class string

const (
	ImbalancedEntries Class = "imbalanced-entries"
	MalformedAmounts  Class = "malformed-amounts"
	UnknownDirectives Class = "unknown-directives"
	InvalidMetadata   Class = "invalid-metadata"
	ReassignedUUIDs   Class = "reassigned-uuids"
)

// Classes lists every known class.
var Classes = []Class{ImbalancedEntries, MalformedAmounts, UnknownDirectives, InvalidMetadata, ReassignedUUIDs}

// ParseClass validates a class name.
func ParseClass(s string) (Class, error) {
	for _, c := range Classes {
		if string(c) == s {
			return c, nil
		}
	}
	names := make([]string, len(Classes))
	for i, c := range Classes {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown warning class %q (expected one of %s)", s, strings.Join(names, ", "))
}

// Warning is one reported problem.
type Warning struct {
	Class   Class
	Message string
	Attrs   []slog.Attr
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Class, w.Message)
}

// Policy decides what happens to warnings. The zero value reports everything
// to slog.Default. A nil *Policy behaves like the zero value but records nothing.
// A Policy is safe for concurrent use once configured.
type Policy struct {
	// Strict turns imbalanced entries into errors instead of synthetic transfers.
	Strict bool

	// Logger receives reported warnings; nil means slog.Default().
	Logger *slog.Logger

	mu       sync.Mutex
	ignored  map[Class]bool
	reported []Warning
}

// NewPolicy returns a policy that ignores the given classes.
func NewPolicy(logger *slog.Logger, ignore ...Class) *Policy {
	p := &Policy{Logger: logger}
	p.Ignore(ignore...)
	return p
}

// Ignore suppresses the given classes.
func (p *Policy) Ignore(classes ...Class) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ignored == nil {
		p.ignored = make(map[Class]bool)
	}
	for _, c := range classes {
		p.ignored[c] = true
	}
}

// Ignored reports whether c is suppressed.
func (p *Policy) Ignored(c Class) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ignored[c]
}

// IsStrict reports whether imbalances are fatal.
func (p *Policy) IsStrict() bool {
	return p != nil && p.Strict
}

// IgnoredClasses returns the suppressed classes, sorted.
func (p *Policy) IgnoredClasses() []Class {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Class, 0, len(p.ignored))
	for c, ok := range p.ignored {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Report logs a warning of class c unless the class is ignored.
func (p *Policy) Report(c Class, msg string, attrs ...slog.Attr) {
	if p.Ignored(c) {
		return
	}

	logger := slog.Default()
	if p != nil && p.Logger != nil {
		logger = p.Logger
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("class", string(c)))
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Warn(msg, args...)

	if p != nil {
		p.mu.Lock()
		p.reported = append(p.reported, Warning{Class: c, Message: msg, Attrs: attrs})
		p.mu.Unlock()
	}
}

// Reported returns the warnings reported so far.
func (p *Policy) Reported() []Warning {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.reported)
}

// Count returns how many warnings of class c were reported.
func (p *Policy) Count(c Class) int {
	n := 0
	for _, w := range p.Reported() {
		if w.Class == c {
			n++
		}
	}
	return n
}

// Reset forgets reported warnings.
func (p *Policy) Reset() {
	if p != nil {
		p.mu.Lock()
		p.reported = nil
		p.mu.Unlock()
	}
}
