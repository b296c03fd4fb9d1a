package query

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestAccountMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		account  string
		want     bool
	}{
		{"no patterns", nil, "Expense.Coffee", true},
		{"exact", []string{"Expense.Coffee"}, "Expense.Coffee", true},
		{"segment prefixes", []string{"ex.co"}, "Expense.Coffee", true},
		{"case insensitive", []string{"EXPENSE"}, "expense.coffee", true},
		{"ancestor matches descendant", []string{"exp"}, "Expense.Food.Coffee", true},
		{"descendant does not match ancestor", []string{"exp.food"}, "Expense", false},
		{"prefix must start the segment", []string{"xpense"}, "Expense", false},
		{"depth matters", []string{"food"}, "Expense.Food", false},
		{"any positive pattern", []string{"assets", "exp"}, "Expense.Rent", true},
		{"negation", []string{"!exp.rent"}, "Expense.Rent", false},
		{"negation only keeps the rest", []string{"!exp.rent"}, "Expense.Food", true},
		{"negation wins", []string{"exp", "!exp.rent"}, "Expense.Rent.Deposit", false},
		{"positive and negation", []string{"exp", "!exp.rent"}, "Expense.Food", true},
		{"positive misses", []string{"exp", "!exp.rent"}, "Assets.Cash", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := CompileMatcher(tt.patterns...)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.account))
		})
	}
}

func TestAccountMatcherErrors(t *testing.T) {
	for _, p := range []string{"", "!", "a..b", ".a", "a.", "  "} {
		t.Run(p, func(t *testing.T) {
			_, err := CompileMatcher(p)
			assert.Error(t, err)
		})
	}
}

func TestAccountMatcherFilter(t *testing.T) {
	accounts := []string{"Assets.Bank", "Assets.Cash", "Expense.Food", "Expense.Rent", "Income.Salary"}
	m := MustCompileMatcher("as", "inc", "!as.ca")
	assert.Equal(t, []string{"Assets.Bank", "Income.Salary"}, m.Filter(accounts))
	assert.False(t, m.MatchAll())
	assert.True(t, MustCompileMatcher().MatchAll())

	var none *AccountMatcher
	assert.True(t, none.Match("Anything"))
}
