package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/optix/options-engine/internal/ledger"
	"github.com/optix/options-engine/internal/metrics"
	"github.com/optix/options-engine/internal/payoff"
)

// Redemption is the result of an early claim burn.
type Redemption struct {
	SeriesID         string `json:"series_id"`
	Holder           string `json:"holder"`
	ClaimsBurned     uint64 `json:"claims_burned"`
	UnderlyingPaid   uint64 `json:"underlying_paid"`
	RemainingClaims  uint64 `json:"remaining_claims"`
	VaultBalance     uint64 `json:"vault_balance"`
}

// BurnClaims redeems claims before expiry: burns amount claim tokens from
// the holder and pays out amount × lot-size underlying units from the
// vault. Burn and transfer are one atomic ledger unit.
//
// Redemption is pro-rata only while the settlement price is unset; once
// fixed, the payoff calculation supersedes it.
func (s *Service) BurnClaims(ctx context.Context, seriesID, holder string, amount uint64) (*Redemption, error) {
	unlock := s.lockSeries(seriesID)
	defer unlock()

	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Unix() > series.Expiry {
		return nil, fmt.Errorf("%w: now %d, expiry %d", ErrBurnAfterExpiry, now.Unix(), series.Expiry)
	}
	if series.Settled() {
		return nil, fmt.Errorf("%w: fixed at %d", ErrBurnAfterSettlement, series.SettlementPrice)
	}

	st, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	holderClaims := s.deriver.TokenAccountID(series.ClaimMint, holder)
	claimBalance, err := s.ledger.Balance(ctx, holderClaims)
	if err != nil {
		return nil, err
	}
	if claimBalance < amount {
		return nil, fmt.Errorf("%w: balance %d, burn %d", ErrInsufficientClaims, claimBalance, amount)
	}

	decimals, err := s.ledger.Decimals(ctx, series.UnderlyingMint)
	if err != nil {
		return nil, err
	}
	lot, err := payoff.LotSize(decimals)
	if err != nil {
		return nil, err
	}
	underlyingAmount, err := payoff.UnderlyingForClaims(amount, lot)
	if err != nil {
		return nil, err
	}

	holderUnderlying := s.deriver.TokenAccountID(series.UnderlyingMint, holder)
	vaultAuth := s.deriver.VaultAuthority(st.VaultAuthNonce)

	// Burn is authorized by the holder (the claim owner); the vault
	// payout is authorized by the derived vault authority.
	err = s.ledger.Atomically(ctx, func(tx ledger.Ledger) error {
		if err := tx.Burn(ctx, series.ClaimMint, holderClaims, holder, amount); err != nil {
			return err
		}
		return tx.Transfer(ctx, series.Vault, holderUnderlying, vaultAuth, underlyingAmount)
	})
	if err != nil {
		return nil, err
	}

	metrics.ClaimsBurned.Add(float64(amount))
	metrics.CollateralLocked.WithLabelValues(series.UnderlyingMint).Sub(float64(underlyingAmount))

	// The redemption committed; a failed lookup here means the accounts we
	// just debited are gone, which is an integrity fault worth surfacing.
	vaultBalance, err := s.ledger.Balance(ctx, series.Vault)
	if err != nil {
		return nil, err
	}
	remaining, err := s.ledger.Balance(ctx, holderClaims)
	if err != nil {
		return nil, err
	}

	slog.Info("claims redeemed",
		"series", seriesID,
		"holder", holder,
		"claims_burned", amount,
		"underlying_paid", underlyingAmount,
		"vault_balance", vaultBalance,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "claims_burned",
			SeriesID: seriesID,
			Symbol:   series.Symbol,
			Amount:   amount,
		})
	}

	return &Redemption{
		SeriesID:        seriesID,
		Holder:          holder,
		ClaimsBurned:    amount,
		UnderlyingPaid:  underlyingAmount,
		RemainingClaims: remaining,
		VaultBalance:    vaultBalance,
	}, nil
}
