package parser

import "sync"

// Interner hands out one canonical instance per distinct string. Account
// names repeat on nearly every transfer line, so sharing them across the
// years of a ledger keeps loaded entries small.
//
// An Interner may be shared by parsers running concurrently.
type Interner struct {
	mu   sync.Mutex
	pool map[string]string
}

// NewInterner creates an Interner with room for capacity strings.
func NewInterner(capacity int) *Interner {
	return &Interner{
		pool: make(map[string]string, capacity),
	}
}

// Intern returns the canonical instance of s.
func (i *Interner) Intern(s string) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if interned, ok := i.pool[s]; ok {
		return interned
	}
	i.pool[s] = s
	return s
}

// Size returns the number of distinct strings seen.
func (i *Interner) Size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pool)
}
