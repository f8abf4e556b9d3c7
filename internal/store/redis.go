package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optix/options-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, keep cache coherent) ---

func (s *CachedStore) CreateState(ctx context.Context, st *model.State) error {
	return s.primary.CreateState(ctx, st)
}

func (s *CachedStore) CreateUnderlying(ctx context.Context, u *model.Underlying) error {
	if err := s.primary.CreateUnderlying(ctx, u); err != nil {
		return err
	}
	s.cacheUnderlying(ctx, u)
	return nil
}

// NextSeriesIndex mutates the counter; the cached underlying goes stale.
func (s *CachedStore) NextSeriesIndex(ctx context.Context, underlyingID string) (uint64, error) {
	idx, err := s.primary.NextSeriesIndex(ctx, underlyingID)
	if err != nil {
		return 0, err
	}
	s.rdb.Del(ctx, underlyingKey(underlyingID))
	return idx, nil
}

func (s *CachedStore) CreateSeries(ctx context.Context, sr *model.OptionSeries) error {
	if err := s.primary.CreateSeries(ctx, sr); err != nil {
		return err
	}
	s.cacheSeries(ctx, sr)
	return nil
}

func (s *CachedStore) UpdateSettlement(ctx context.Context, id string, price, profitPerClaim, remaining uint64) error {
	if err := s.primary.UpdateSettlement(ctx, id, price, profitPerClaim, remaining); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, seriesKey(id))
	return nil
}

func (s *CachedStore) DeleteSeries(ctx context.Context, id string) error {
	if err := s.primary.DeleteSeries(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, seriesKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetState(ctx context.Context) (*model.State, error) {
	data, err := s.rdb.Get(ctx, stateKey()).Bytes()
	if err == nil {
		var st model.State
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	st, err := s.primary.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, stateKey(), data, s.ttl)
	}
	return st, nil
}

func (s *CachedStore) GetUnderlying(ctx context.Context, id string) (*model.Underlying, error) {
	data, err := s.rdb.Get(ctx, underlyingKey(id)).Bytes()
	if err == nil {
		var u model.Underlying
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.GetUnderlying(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheUnderlying(ctx, u)
	return u, nil
}

func (s *CachedStore) GetSeries(ctx context.Context, id string) (*model.OptionSeries, error) {
	data, err := s.rdb.Get(ctx, seriesKey(id)).Bytes()
	if err == nil {
		var sr model.OptionSeries
		if json.Unmarshal(data, &sr) == nil {
			return &sr, nil
		}
	}

	sr, err := s.primary.GetSeries(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSeries(ctx, sr)
	return sr, nil
}

func (s *CachedStore) GetSeriesBySymbol(ctx context.Context, sym string) (*model.OptionSeries, error) {
	// Try cache via symbol→seriesID mapping.
	seriesID, err := s.rdb.Get(ctx, symbolKey(sym)).Result()
	if err == nil {
		return s.GetSeries(ctx, seriesID)
	}

	sr, err := s.primary.GetSeriesBySymbol(ctx, sym)
	if err != nil {
		return nil, err
	}

	// Cache both the series and the symbol→ID mapping.
	s.cacheSeries(ctx, sr)
	s.rdb.Set(ctx, symbolKey(sym), sr.ID, s.ttl)
	return sr, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetUnderlyingByAsset(ctx context.Context, assetMint string) (*model.Underlying, error) {
	return s.primary.GetUnderlyingByAsset(ctx, assetMint)
}

func (s *CachedStore) ListUnderlyings(ctx context.Context) ([]model.Underlying, error) {
	return s.primary.ListUnderlyings(ctx)
}

func (s *CachedStore) ListSeries(ctx context.Context) ([]model.OptionSeries, error) {
	return s.primary.ListSeries(ctx)
}

func (s *CachedStore) ListSeriesByUnderlying(ctx context.Context, underlyingID string) ([]model.OptionSeries, error) {
	return s.primary.ListSeriesByUnderlying(ctx, underlyingID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheUnderlying(ctx context.Context, u *model.Underlying) {
	if data, err := json.Marshal(u); err == nil {
		s.rdb.Set(ctx, underlyingKey(u.ID), data, s.ttl)
	}
}

func (s *CachedStore) cacheSeries(ctx context.Context, sr *model.OptionSeries) {
	if data, err := json.Marshal(sr); err == nil {
		s.rdb.Set(ctx, seriesKey(sr.ID), data, s.ttl)
	}
}

func stateKey() string { return "state" }

func underlyingKey(id string) string { return fmt.Sprintf("underlying:%s", id) }

func seriesKey(id string) string { return fmt.Sprintf("series:%s", id) }

func symbolKey(sym string) string { return fmt.Sprintf("symbol:%s", sym) }
