package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/robinvdvleuten/tally/warn"
)

func FuzzParseYear(f *testing.F) {
	seeds := []string{
		// Balanced entry
		"2021-01-01 Coffee #aaaaaaaa\n  \tExpense.Coffee\t3.50\n  \tAssets.Cash\t-3.50\n",

		// Blank last transfer
		"2021-01-01 Coffee #aaaaaaaa\n  \tExpense.Coffee\t3.50\n  \tAssets.Cash\t\n",

		// Time of day, memo and metadata
		"2021-01-01 08:30:00 Coffee #aaaaaaaa\n  ;cups:2\n  ;where:\"Corner shop\"\n  to go\tExpense.Coffee\t3.50\n  \tAssets.Cash\t-3.50\n",

		// Several currencies
		"2021-01-01 Exchange #aaaaaaaa\n  \tAssets.Euro\t10 EUR\n  \tAssets.Cash\t-$12\n",

		// Missing and duplicate uuids
		"2021-01-01 Coffee\n  \tExpense.Coffee\t1\n  \tAssets.Cash\t-1\n2021-01-02 Tea #aaaaaaaa\n  \tExpense.Tea\t1\n  \tAssets.Cash\t-1\n2021-01-03 Tea #aaaaaaaa\n  \tExpense.Tea\t1\n  \tAssets.Cash\t-1\n",

		// Edge cases
		"",
		"  \n\n  \n",
		"garbage\n",
		"2021-13-45 Nope #zzzzzzzz\n",
	}

	for _, seed := range seeds {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("parser panicked on input %q: %v", data, r)
			}
		}()

		policy := newTestPolicy(warn.Classes...)
		year, err := ParseYear(context.Background(), "fuzz.ledger", strings.NewReader(string(data)),
			WithHome("$"), WithPolicy(policy))
		if err != nil {
			return
		}
		if year == nil {
			t.Fatal("ParseYear returned nil year with nil error")
		}

		// Every entry that survived parsing balances and has a unique id.
		seen := make(map[string]bool, len(year.Entries))
		for _, e := range year.Entries {
			if seen[e.UUID] {
				t.Errorf("duplicate uuid %q", e.UUID)
			}
			seen[e.UUID] = true
		}
	})
}
