package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/optix/options-engine/internal/ledger"
	"github.com/optix/options-engine/internal/metrics"
)

// CloseResult is the outcome of a terminal close-out.
type CloseResult struct {
	SeriesID           string `json:"series_id"`
	Creator            string `json:"creator"`
	CollateralReturned uint64 `json:"collateral_returned"`
	ClaimsBurned       uint64 `json:"claims_burned"`
}

// CloseSeries drains the vault to the creator, closes the vault and the
// creator's claim account, burns the creator's leftover claims, and
// deletes the series record. Creator-only, after expiry, all one atomic
// ledger unit. Terminal: no further operations against the series.
//
// The transferred amount is the remaining collateral if settlement was
// fixed ITM, or the full original collateral if settlement was never
// fixed or was OTM.
func (s *Service) CloseSeries(ctx context.Context, seriesID, caller string) (*CloseResult, error) {
	unlock := s.lockSeries(seriesID)
	defer unlock()

	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Unix() < series.Expiry {
		return nil, fmt.Errorf("%w: now %d, expiry %d", ErrNotPastCloseTime, now.Unix(), series.Expiry)
	}
	if caller != series.Creator {
		return nil, ErrOnlyCreatorCanClose
	}

	st, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	vaultAuth := s.deriver.VaultAuthority(st.VaultAuthNonce)

	vaultBalance, err := s.ledger.Balance(ctx, series.Vault)
	if err != nil {
		return nil, err
	}
	creatorClaims, err := s.ledger.Balance(ctx, series.CreatorClaimAccount)
	if err != nil {
		return nil, err
	}

	creatorUnderlying := s.deriver.TokenAccountID(series.UnderlyingMint, series.Creator)

	err = s.ledger.Atomically(ctx, func(tx ledger.Ledger) error {
		if err := tx.Transfer(ctx, series.Vault, creatorUnderlying, vaultAuth, vaultBalance); err != nil {
			return err
		}
		if err := tx.CloseAccount(ctx, series.Vault, series.Creator, vaultAuth); err != nil {
			return err
		}
		if err := tx.Burn(ctx, series.ClaimMint, series.CreatorClaimAccount, series.Creator, creatorClaims); err != nil {
			return err
		}
		return tx.CloseAccount(ctx, series.CreatorClaimAccount, series.Creator, series.Creator)
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteSeries(ctx, seriesID); err != nil {
		return nil, err
	}

	metrics.SeriesClosed.Inc()
	metrics.CollateralLocked.WithLabelValues(series.UnderlyingMint).Sub(float64(vaultBalance))

	slog.Info("series closed",
		"series", seriesID,
		"symbol", series.Symbol,
		"creator", series.Creator,
		"collateral_returned", vaultBalance,
		"claims_burned", creatorClaims,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "series_closed",
			SeriesID: seriesID,
			Symbol:   series.Symbol,
			Amount:   vaultBalance,
		})
	}

	return &CloseResult{
		SeriesID:           seriesID,
		Creator:            series.Creator,
		CollateralReturned: vaultBalance,
		ClaimsBurned:       creatorClaims,
	}, nil
}
