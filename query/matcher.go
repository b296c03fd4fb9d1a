package query

import (
	"fmt"
	"strings"
)

// AccountMatcher selects accounts with fuzzy dotted patterns.
//
// Each segment of a pattern is a case-insensitive prefix of the account
// segment at the same depth, so "ex.co" matches "Expense.Coffee". A pattern
// with fewer segments than an account matches its descendants too. Patterns
// starting with "!" exclude what they match. An account matches when it
// matches any positive pattern, or there are none, and no negative one.
type AccountMatcher struct {
	include [][]string
	exclude [][]string
}

// CompileMatcher compiles patterns into a matcher. No patterns match every
// account.
func CompileMatcher(patterns ...string) (*AccountMatcher, error) {
	m := &AccountMatcher{}
	for _, p := range patterns {
		negate := strings.HasPrefix(p, "!")
		segments, err := splitPattern(strings.TrimPrefix(p, "!"))
		if err != nil {
			return nil, fmt.Errorf("account pattern %q: %w", p, err)
		}
		if negate {
			m.exclude = append(m.exclude, segments)
		} else {
			m.include = append(m.include, segments)
		}
	}
	return m, nil
}

// MustCompileMatcher is like CompileMatcher but panics on error.
func MustCompileMatcher(patterns ...string) *AccountMatcher {
	m, err := CompileMatcher(patterns...)
	if err != nil {
		panic(err)
	}
	return m
}

func splitPattern(p string) ([]string, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	segments := strings.Split(strings.ToLower(p), ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("empty segment")
		}
	}
	return segments, nil
}

// Match reports whether account is selected.
func (m *AccountMatcher) Match(account string) bool {
	if m == nil {
		return true
	}
	parts := strings.Split(strings.ToLower(account), ".")
	for _, p := range m.exclude {
		if matchSegments(p, parts) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, p := range m.include {
		if matchSegments(p, parts) {
			return true
		}
	}
	return false
}

// MatchAll reports whether the matcher selects every account.
func (m *AccountMatcher) MatchAll() bool {
	return m == nil || (len(m.include) == 0 && len(m.exclude) == 0)
}

// Filter returns the selected accounts in order.
func (m *AccountMatcher) Filter(accounts []string) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if m.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) > len(parts) {
		return false
	}
	for i, seg := range pattern {
		if !strings.HasPrefix(parts[i], seg) {
			return false
		}
	}
	return true
}
