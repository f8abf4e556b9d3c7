// Package engine implements the option-series lifecycle: bootstrap,
// series creation, early redemption, settlement-price fixing, and
// terminal close-out.
//
// Each public operation runs as one indivisible unit against a fixed set
// of records: record reads, precondition checks, then a single atomic
// ledger unit, then the record write. Operations against the same series
// serialize on a per-series lock; operations on different series are
// independent.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/optix/options-engine/internal/authority"
	"github.com/optix/options-engine/internal/ledger"
	"github.com/optix/options-engine/internal/metrics"
	"github.com/optix/options-engine/internal/model"
	"github.com/optix/options-engine/internal/oracle"
	"github.com/optix/options-engine/internal/payoff"
	"github.com/optix/options-engine/internal/store"
	"github.com/optix/options-engine/internal/symbol"
)

var (
	// ErrNotInitialized is returned when an operation runs before the
	// state record was bootstrapped.
	ErrNotInitialized = errors.New("engine: state not initialized")

	// ErrUnauthorizedAdmin is returned when a non-admin caller invokes an
	// admin-gated operation.
	ErrUnauthorizedAdmin = errors.New("engine: unauthorized admin")

	// ErrInvalidStrike is returned when a series is created with a zero strike.
	ErrInvalidStrike = errors.New("engine: strike must be positive")

	// ErrExpiryNotFuture is returned when a series is created with an
	// expiry at or before the current time.
	ErrExpiryNotFuture = errors.New("engine: expiry must be in the future")

	// ErrBurnAfterExpiry is returned when a redemption is attempted past expiry.
	ErrBurnAfterExpiry = errors.New("engine: cannot burn claims after expiry")

	// ErrBurnAfterSettlement is returned when a redemption is attempted
	// after the settlement price was fixed.
	ErrBurnAfterSettlement = errors.New("engine: cannot burn claims after settlement price is set")

	// ErrInsufficientClaims is returned when a holder redeems more claims
	// than they hold.
	ErrInsufficientClaims = errors.New("engine: insufficient claims to burn")

	// ErrBeforeWindow is returned when settlement fixing is attempted
	// before expiry − window.
	ErrBeforeWindow = errors.New("engine: before settlement price window")

	// ErrAfterWindow is returned when settlement fixing is attempted
	// after expiry + window.
	ErrAfterWindow = errors.New("engine: after settlement price window")

	// ErrAlreadySet is returned when the settlement price was already fixed.
	ErrAlreadySet = errors.New("engine: settlement price already set")

	// ErrNotPastCloseTime is returned when close-out is attempted before expiry.
	ErrNotPastCloseTime = errors.New("engine: not past series close time")

	// ErrOnlyCreatorCanClose is returned when a non-creator attempts close-out.
	ErrOnlyCreatorCanClose = errors.New("engine: only the creator can close a series")
)

// defaultNonce is the initial derivation nonce for all authorities and
// records. Stored on the records so derivations can be re-validated.
const defaultNonce uint8 = 255

// Service executes the lifecycle operations. The clock is injectable so
// window checks are testable; every operation reads it exactly once.
type Service struct {
	store   store.Store
	ledger  ledger.Ledger
	oracle  oracle.Oracle
	deriver *authority.Deriver
	hub     *WSHub // optional, for lifecycle event broadcasts
	now     func() time.Time

	locks sync.Map // series id → *sync.Mutex
}

// NewService creates the engine service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, ld ledger.Ledger, or oracle.Oracle, hub *WSHub) *Service {
	return &Service{
		store:   st,
		ledger:  ld,
		oracle:  or,
		deriver: authority.NewDeriver(),
		hub:     hub,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Deriver exposes the address deriver so callers can locate a series'
// vault or mint without a side lookup.
func (s *Service) Deriver() *authority.Deriver {
	return s.deriver
}

// lockSeries serializes operations that touch one series' vault balance
// and claim supply. Returns the unlock func.
func (s *Service) lockSeries(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) state(ctx context.Context) (*model.State, error) {
	st, err := s.store.GetState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	return st, err
}

// InitializeState bootstraps the singleton state record: admin identity,
// authority nonces, and the settlement window width. Fails if the engine
// was already bootstrapped; the admin is immutable afterwards.
func (s *Service) InitializeState(ctx context.Context, admin string, settlementWindowSeconds uint64) (*model.State, error) {
	st := &model.State{
		Admin:            admin,
		StateNonce:       defaultNonce,
		MintAuthNonce:    defaultNonce,
		VaultAuthNonce:   defaultNonce,
		SettlementWindow: settlementWindowSeconds,
		CreatedAt:        s.now(),
	}
	if err := s.store.CreateState(ctx, st); err != nil {
		return nil, err
	}

	slog.Info("state initialized",
		"admin", admin,
		"settlement_window_seconds", settlementWindowSeconds,
		"mint_authority", s.deriver.MintAuthority(st.MintAuthNonce),
		"vault_authority", s.deriver.VaultAuthority(st.VaultAuthNonce),
	)
	return st, nil
}

// InitializeUnderlying registers a backing asset with its oracle feed.
// Admin only.
func (s *Service) InitializeUnderlying(ctx context.Context, caller, assetMint, oracleID string) (*model.Underlying, error) {
	st, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	if caller != st.Admin {
		return nil, ErrUnauthorizedAdmin
	}

	// The asset mint must exist on the ledger; its decimals determine the
	// lot size of every series built on it.
	decimals, err := s.ledger.Decimals(ctx, assetMint)
	if err != nil {
		return nil, err
	}
	if _, err := payoff.LotSize(decimals); err != nil {
		return nil, err
	}

	u := &model.Underlying{
		ID:        s.deriver.UnderlyingID(assetMint),
		AssetMint: assetMint,
		Oracle:    oracleID,
		Count:     0,
		Nonce:     defaultNonce,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUnderlying(ctx, u); err != nil {
		return nil, err
	}

	slog.Info("underlying initialized",
		"id", u.ID,
		"asset_mint", assetMint,
		"oracle", oracleID,
		"decimals", decimals,
	)
	return u, nil
}

// CreateSeriesParams are the inputs to series creation.
type CreateSeriesParams struct {
	Creator    string
	AssetMint  string
	Collateral uint64 // underlying base units; must be a lot-size multiple
	Strike     uint64 // fixed-scale quote units
	Expiry     int64  // unix seconds, strictly future
}

// CreateSeries escrows collateral into a fresh vault and mints claim
// tokens to the creator. The claim mint and the collateral transfer are
// one atomic ledger unit — partial issuance is never observable.
func (s *Service) CreateSeries(ctx context.Context, p CreateSeriesParams) (*model.OptionSeries, error) {
	st, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if p.Expiry <= now.Unix() {
		return nil, fmt.Errorf("%w: expiry %d, now %d", ErrExpiryNotFuture, p.Expiry, now.Unix())
	}
	if p.Strike == 0 {
		return nil, ErrInvalidStrike
	}

	u, err := s.store.GetUnderlyingByAsset(ctx, p.AssetMint)
	if err != nil {
		return nil, err
	}

	decimals, err := s.ledger.Decimals(ctx, p.AssetMint)
	if err != nil {
		return nil, err
	}
	lot, err := payoff.LotSize(decimals)
	if err != nil {
		return nil, err
	}
	claims, err := payoff.ClaimsForCollateral(p.Collateral, lot)
	if err != nil {
		return nil, err
	}

	// Fail before any mutation if the creator cannot fund the vault.
	creatorUnderlying := s.deriver.TokenAccountID(p.AssetMint, p.Creator)
	balance, err := s.ledger.Balance(ctx, creatorUnderlying)
	if err != nil {
		return nil, err
	}
	if balance < p.Collateral {
		return nil, fmt.Errorf("%w: balance %d, collateral %d", ledger.ErrInsufficientFunds, balance, p.Collateral)
	}

	// Claim the next series index. Monotonic, never reused even if the
	// series is later closed.
	index, err := s.store.NextSeriesIndex(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	seriesID := s.deriver.SeriesID(u.ID, index)
	claimMint := s.deriver.ClaimMintID(seriesID)
	vault := s.deriver.VaultID(seriesID)
	creatorClaims := s.deriver.TokenAccountID(claimMint, p.Creator)

	series := &model.OptionSeries{
		ID:                  seriesID,
		Symbol:              symbol.Format(p.AssetMint, p.Strike, time.Unix(p.Expiry, 0), index),
		UnderlyingID:        u.ID,
		SeriesIndex:         index,
		Creator:             p.Creator,
		ClaimMint:           claimMint,
		UnderlyingMint:      p.AssetMint,
		Vault:               vault,
		CreatorClaimAccount: creatorClaims,
		Strike:              p.Strike,
		Expiry:              p.Expiry,
		SeriesNonce:         defaultNonce,
		MintNonce:           defaultNonce,
		VaultNonce:          defaultNonce,
		CreatedAt:           now,
	}
	mintAuth := s.deriver.MintAuthority(st.MintAuthNonce)
	vaultAuth := s.deriver.VaultAuthority(st.VaultAuthNonce)

	err = s.ledger.Atomically(ctx, func(tx ledger.Ledger) error {
		if err := tx.CreateMint(ctx, claimMint, payoff.ClaimDecimals, mintAuth); err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, vault, p.AssetMint, vaultAuth); err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, creatorClaims, claimMint, p.Creator); err != nil {
			return err
		}
		if err := tx.MintTo(ctx, claimMint, creatorClaims, mintAuth, claims); err != nil {
			return err
		}
		return tx.Transfer(ctx, creatorUnderlying, vault, p.Creator, p.Collateral)
	})
	if err != nil {
		return nil, err
	}

	// The record is written only after the escrow committed, so a reader
	// can never observe a series without its vault and mint. If the write
	// fails, unwind the escrow so the collateral is not stranded.
	if err := s.store.CreateSeries(ctx, series); err != nil {
		revErr := s.ledger.Atomically(ctx, func(tx ledger.Ledger) error {
			if err := tx.Transfer(ctx, vault, creatorUnderlying, vaultAuth, p.Collateral); err != nil {
				return err
			}
			if err := tx.Burn(ctx, claimMint, creatorClaims, p.Creator, claims); err != nil {
				return err
			}
			if err := tx.CloseAccount(ctx, vault, p.Creator, vaultAuth); err != nil {
				return err
			}
			return tx.CloseAccount(ctx, creatorClaims, p.Creator, p.Creator)
		})
		if revErr != nil {
			slog.Error("failed to unwind escrow after record write failure",
				"series", seriesID, "err", revErr)
		}
		return nil, err
	}

	metrics.SeriesCreated.WithLabelValues(p.AssetMint).Inc()
	metrics.CollateralLocked.WithLabelValues(p.AssetMint).Add(float64(p.Collateral))

	slog.Info("series created",
		"series", seriesID,
		"symbol", series.Symbol,
		"underlying", u.ID,
		"index", index,
		"creator", p.Creator,
		"collateral", p.Collateral,
		"claims_minted", claims,
		"strike", p.Strike,
		"expiry", p.Expiry,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "series_created",
			SeriesID: seriesID,
			Symbol:   series.Symbol,
			Amount:   claims,
		})
	}
	return series, nil
}
