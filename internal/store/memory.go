package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/optix/options-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	state       *model.State
	underlyings map[string]*model.Underlying
	series      map[string]*model.OptionSeries
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		underlyings: make(map[string]*model.Underlying),
		series:      make(map[string]*model.OptionSeries),
	}
}

func (s *MemoryStore) CreateState(_ context.Context, st *model.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return fmt.Errorf("%w: state", ErrAlreadyExists)
	}
	cp := *st
	s.state = &cp
	return nil
}

func (s *MemoryStore) GetState(_ context.Context) (*model.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, fmt.Errorf("%w: state", ErrNotFound)
	}
	cp := *s.state
	return &cp, nil
}

func (s *MemoryStore) CreateUnderlying(_ context.Context, u *model.Underlying) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.underlyings[u.ID]; ok {
		return fmt.Errorf("%w: underlying %s", ErrAlreadyExists, u.ID)
	}
	for _, existing := range s.underlyings {
		if existing.AssetMint == u.AssetMint {
			return fmt.Errorf("%w: underlying for asset %s", ErrAlreadyExists, u.AssetMint)
		}
	}
	cp := *u
	s.underlyings[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUnderlying(_ context.Context, id string) (*model.Underlying, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.underlyings[id]
	if !ok {
		return nil, fmt.Errorf("%w: underlying %s", ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUnderlyingByAsset(_ context.Context, assetMint string) (*model.Underlying, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.underlyings {
		if u.AssetMint == assetMint {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: underlying for asset %s", ErrNotFound, assetMint)
}

func (s *MemoryStore) ListUnderlyings(_ context.Context) ([]model.Underlying, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Underlying, 0, len(s.underlyings))
	for _, u := range s.underlyings {
		out = append(out, *u)
	}
	return out, nil
}

// NextSeriesIndex increments the counter under the write lock, so no two
// creations observe the same pre-increment value.
func (s *MemoryStore) NextSeriesIndex(_ context.Context, underlyingID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.underlyings[underlyingID]
	if !ok {
		return 0, fmt.Errorf("%w: underlying %s", ErrNotFound, underlyingID)
	}
	idx := u.Count
	u.Count++
	return idx, nil
}

func (s *MemoryStore) CreateSeries(_ context.Context, sr *model.OptionSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[sr.ID]; ok {
		return fmt.Errorf("%w: series %s", ErrAlreadyExists, sr.ID)
	}
	cp := *sr
	s.series[sr.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSeries(_ context.Context, id string) (*model.OptionSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[id]
	if !ok {
		return nil, fmt.Errorf("%w: series %s", ErrNotFound, id)
	}
	cp := *sr
	return &cp, nil
}

func (s *MemoryStore) GetSeriesBySymbol(_ context.Context, sym string) (*model.OptionSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sr := range s.series {
		if sr.Symbol == sym {
			cp := *sr
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: series %s", ErrNotFound, sym)
}

func (s *MemoryStore) ListSeries(_ context.Context) ([]model.OptionSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.OptionSeries, 0, len(s.series))
	for _, sr := range s.series {
		out = append(out, *sr)
	}
	return out, nil
}

func (s *MemoryStore) ListSeriesByUnderlying(_ context.Context, underlyingID string) ([]model.OptionSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.OptionSeries
	for _, sr := range s.series {
		if sr.UnderlyingID == underlyingID {
			out = append(out, *sr)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateSettlement(_ context.Context, id string, price, profitPerClaim, remaining uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[id]
	if !ok {
		return fmt.Errorf("%w: series %s", ErrNotFound, id)
	}
	sr.SettlementPrice = price
	sr.ProfitPerClaim = profitPerClaim
	sr.RemainingCollateral = remaining
	return nil
}

func (s *MemoryStore) DeleteSeries(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[id]; !ok {
		return fmt.Errorf("%w: series %s", ErrNotFound, id)
	}
	delete(s.series, id)
	return nil
}
