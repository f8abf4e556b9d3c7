// Package store defines the persistence interface for the options engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/optix/options-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrAlreadyExists is returned when creating a record at an occupied key.
var ErrAlreadyExists = errors.New("store: record already exists")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- State singleton ---

	// CreateState persists the singleton state record. Fails with
	// ErrAlreadyExists if the engine was already bootstrapped.
	CreateState(ctx context.Context, st *model.State) error

	// GetState retrieves the singleton state record.
	GetState(ctx context.Context) (*model.State, error)

	// --- Underlyings ---

	// CreateUnderlying persists a new underlying registration.
	CreateUnderlying(ctx context.Context, u *model.Underlying) error

	// GetUnderlying retrieves an underlying by its derived id.
	GetUnderlying(ctx context.Context, id string) (*model.Underlying, error)

	// GetUnderlyingByAsset retrieves an underlying by its asset mint.
	GetUnderlyingByAsset(ctx context.Context, assetMint string) (*model.Underlying, error)

	// ListUnderlyings returns all registered underlyings.
	ListUnderlyings(ctx context.Context) ([]model.Underlying, error)

	// NextSeriesIndex increments an underlying's series counter and
	// returns the pre-increment value. The increment is atomic: no two
	// callers ever observe the same index.
	NextSeriesIndex(ctx context.Context, underlyingID string) (uint64, error)

	// --- Option series ---

	// CreateSeries persists a new option series.
	CreateSeries(ctx context.Context, s *model.OptionSeries) error

	// GetSeries retrieves a series by its derived id.
	GetSeries(ctx context.Context, id string) (*model.OptionSeries, error)

	// GetSeriesBySymbol retrieves a series by its display symbol.
	GetSeriesBySymbol(ctx context.Context, sym string) (*model.OptionSeries, error)

	// ListSeries returns all series.
	ListSeries(ctx context.Context) ([]model.OptionSeries, error)

	// ListSeriesByUnderlying returns all series for one underlying.
	ListSeriesByUnderlying(ctx context.Context, underlyingID string) ([]model.OptionSeries, error)

	// UpdateSettlement stores the fixed settlement price and the computed
	// collateral split.
	UpdateSettlement(ctx context.Context, id string, price, profitPerClaim, remaining uint64) error

	// DeleteSeries removes a closed series record. Terminal.
	DeleteSeries(ctx context.Context, id string) error
}
