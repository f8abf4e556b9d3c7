package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/optix/options-engine/internal/metrics"
	"github.com/optix/options-engine/internal/model"
	"github.com/optix/options-engine/internal/oracle"
	"github.com/optix/options-engine/internal/payoff"
)

// FixSettlementPrice reads the underlying's oracle exactly once and fixes
// the series' settlement price. Callable by anyone, but only inside the
// window [expiry − w, expiry + w] and only while the price is unset; a
// failed attempt leaves the stored price untouched.
func (s *Service) FixSettlementPrice(ctx context.Context, seriesID string) (*payoff.Settlement, error) {
	unlock := s.lockSeries(seriesID)
	defer unlock()

	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	st, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	window := int64(st.SettlementWindow)
	start := series.Expiry - window
	end := series.Expiry + window
	if now < start {
		return nil, fmt.Errorf("%w: now %d < start %d", ErrBeforeWindow, now, start)
	}
	if now > end {
		return nil, fmt.Errorf("%w: now %d > end %d", ErrAfterWindow, now, end)
	}
	if series.Settled() {
		return nil, fmt.Errorf("%w: %d", ErrAlreadySet, series.SettlementPrice)
	}

	u, err := s.store.GetUnderlying(ctx, series.UnderlyingID)
	if err != nil {
		return nil, err
	}
	quote, err := s.oracle.Read(ctx, u.Oracle)
	if err != nil {
		return nil, err
	}

	settlement, err := s.fix(ctx, series, quote)
	if err != nil {
		return nil, err
	}

	result := "otm"
	if settlement.ITM {
		result = "itm"
	}
	metrics.Settlements.WithLabelValues(result).Inc()

	slog.Info("settlement price fixed",
		"series", seriesID,
		"symbol", series.Symbol,
		"oracle", u.Oracle,
		"price", settlement.Price,
		"strike", series.Strike,
		"itm", settlement.ITM,
		"profit_per_claim", settlement.ProfitPerClaim,
		"remaining_collateral", settlement.RemainingCollateral,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "settlement_fixed",
			SeriesID: seriesID,
			Symbol:   series.Symbol,
			Price:    settlement.Price,
		})
	}
	return settlement, nil
}

// OverrideSettlementPrice is the admin escape hatch for a dead oracle
// feed: same fix-once and payoff rules, but the quote is supplied by the
// admin and the window check does not apply.
func (s *Service) OverrideSettlementPrice(ctx context.Context, seriesID, caller string, quote oracle.Quote) (*payoff.Settlement, error) {
	unlock := s.lockSeries(seriesID)
	defer unlock()

	st, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	if caller != st.Admin {
		return nil, ErrUnauthorizedAdmin
	}

	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Settled() {
		return nil, fmt.Errorf("%w: %d", ErrAlreadySet, series.SettlementPrice)
	}

	settlement, err := s.fix(ctx, series, quote)
	if err != nil {
		return nil, err
	}

	metrics.Settlements.WithLabelValues("override").Inc()

	slog.Warn("settlement price overridden",
		"series", seriesID,
		"symbol", series.Symbol,
		"admin", caller,
		"price", settlement.Price,
		"remaining_collateral", settlement.RemainingCollateral,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "settlement_fixed",
			SeriesID: seriesID,
			Symbol:   series.Symbol,
			Price:    settlement.Price,
		})
	}
	return settlement, nil
}

// fix normalizes the quote, computes the collateral split, and stores the
// result. The stored price is only written once everything validated, so
// a failure leaves the series unsettled.
func (s *Service) fix(ctx context.Context, series *model.OptionSeries, quote oracle.Quote) (*payoff.Settlement, error) {
	price, err := payoff.NormalizePrice(quote.Price, quote.Expo)
	if err != nil {
		return nil, err
	}

	decimals, err := s.ledger.Decimals(ctx, series.UnderlyingMint)
	if err != nil {
		return nil, err
	}
	lot, err := payoff.LotSize(decimals)
	if err != nil {
		return nil, err
	}
	supply, err := s.ledger.Supply(ctx, series.ClaimMint)
	if err != nil {
		return nil, err
	}
	vaultBalance, err := s.ledger.Balance(ctx, series.Vault)
	if err != nil {
		return nil, err
	}

	settlement, err := payoff.Settle(series.Strike, price, lot, supply, vaultBalance)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateSettlement(ctx, series.ID,
		settlement.Price, settlement.ProfitPerClaim, settlement.RemainingCollateral); err != nil {
		return nil, err
	}
	return &settlement, nil
}
