package memory

import (
	"context"
	"sync"

	"github.com/aretw0/cardsort/pkg/domain"
)

// Result is one scripted recognizer outcome.
type Result struct {
	Identification domain.Identification
	Err            error
}

// Identifier implements ports.Identifier by replaying scripted results.
// Once the script is exhausted the last result repeats.
type Identifier struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

// NewIdentifier creates an identifier that returns results in order.
func NewIdentifier(results ...Result) *Identifier {
	return &Identifier{results: results}
}

// Identify implements ports.Identifier.
func (i *Identifier) Identify(ctx context.Context) (domain.Identification, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.results) == 0 {
		i.calls++
		return domain.Identification{Failure: "no scripted result"}, nil
	}
	idx := i.calls
	if idx >= len(i.results) {
		idx = len(i.results) - 1
	}
	i.calls++
	r := i.results[idx]
	return r.Identification, r.Err
}

// Calls returns how many times Identify was called.
func (i *Identifier) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}
