// Package oracle defines the read-only price feed contract consumed
// during settlement-price fixing. The feed's own aggregation mechanism is
// out of scope; only the read side is specified.
package oracle

import (
	"context"
	"errors"
	"sync"
)

// ErrFeedNotFound is returned when no quote exists for a feed.
var ErrFeedNotFound = errors.New("oracle: feed not found")

// Quote is one oracle observation: a price at a decimal exponent, with
// the publisher's confidence interval. The engine normalizes
// price × 10^scale / 10^(−expo) before use.
type Quote struct {
	Price int64  `json:"price"`
	Expo  int32  `json:"expo"`
	Conf  uint64 `json:"conf"`
}

// Oracle reads the latest quote for a feed. Implementations must not
// block beyond ctx.
type Oracle interface {
	Read(ctx context.Context, feedID string) (Quote, error)
}

// Static is an in-memory oracle with settable quotes. Used for
// development and tests.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewStatic creates an empty static oracle.
func NewStatic() *Static {
	return &Static{quotes: make(map[string]Quote)}
}

// Set stores the quote for a feed, replacing any previous one.
func (s *Static) Set(feedID string, q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[feedID] = q
}

func (s *Static) Read(_ context.Context, feedID string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[feedID]
	if !ok {
		return Quote{}, ErrFeedNotFound
	}
	return q, nil
}
