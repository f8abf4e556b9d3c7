// Package payoff implements the collateral lot-size conversion, oracle
// price normalization, and in-the-money payoff computation for option
// series settlement.
//
// All amounts are integer token base units (uint64). Every multiply,
// divide, add, and subtract is checked: an operation that would wrap or
// underflow fails with an error instead of producing a silently wrong
// amount. Division truncates toward zero, which deliberately favors the
// collateral pool over claim holders on rounding.
//
// The package is stateless — series fields are passed as arguments, not
// stored.
package payoff

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/shopspring/decimal"
)

const (
	// ClaimDecimals is the precision of every claim mint.
	ClaimDecimals = 4

	// PriceScale is the fixed-point scale of normalized settlement prices
	// (quote-currency decimals).
	PriceScale = 6
)

var (
	// ErrOverflow is returned when a checked arithmetic step would wrap.
	ErrOverflow = errors.New("payoff: arithmetic overflow")

	// ErrNotLotMultiple is returned when a collateral amount is not an
	// exact multiple of the lot size.
	ErrNotLotMultiple = errors.New("payoff: collateral amount not a multiple of lot size")

	// ErrUnsupportedDecimals is returned when the underlying mint has
	// fewer decimals than the claim mint, which would make the lot size
	// fractional.
	ErrUnsupportedDecimals = errors.New("payoff: underlying decimals below claim decimals")

	// ErrNonPositivePrice is returned when the oracle reports a zero or
	// negative price.
	ErrNonPositivePrice = errors.New("payoff: oracle price must be positive")

	// ErrPriceOutOfRange is returned when the normalized price does not
	// fit the engine's fixed-point range.
	ErrPriceOutOfRange = errors.New("payoff: normalized price out of range")

	// ErrPayoutExceedsVault is returned when computed profit exceeds the
	// vault balance. This indicates a data integrity fault upstream,
	// never an expected condition.
	ErrPayoutExceedsVault = errors.New("payoff: total profit exceeds vault balance")
)

// LotSize returns the conversion factor between underlying base units and
// claim base units: 10^(underlyingDecimals) / 10^(ClaimDecimals).
func LotSize(underlyingDecimals uint8) (uint64, error) {
	if underlyingDecimals < ClaimDecimals {
		return 0, fmt.Errorf("%w: %d < %d", ErrUnsupportedDecimals, underlyingDecimals, ClaimDecimals)
	}
	return pow10(uint64(underlyingDecimals - ClaimDecimals))
}

// ClaimsForCollateral converts a collateral deposit into the number of
// claims to mint. The deposit must be an exact multiple of lotSize.
func ClaimsForCollateral(collateral, lotSize uint64) (uint64, error) {
	if lotSize == 0 {
		return 0, ErrOverflow
	}
	if collateral%lotSize != 0 {
		return 0, fmt.Errorf("%w: %d %% %d != 0", ErrNotLotMultiple, collateral, lotSize)
	}
	return collateral / lotSize, nil
}

// UnderlyingForClaims converts a claim amount back into underlying base
// units: claims × lotSize, checked.
func UnderlyingForClaims(claims, lotSize uint64) (uint64, error) {
	return checkedMul(claims, lotSize)
}

// NormalizePrice converts a raw oracle quote (price, decimal exponent)
// into the engine's fixed-point scale: price × 10^PriceScale / 10^(−expo).
// Uses arbitrary-precision decimal arithmetic so the intermediate product
// cannot overflow; the result is truncated toward zero and must fit uint64.
func NormalizePrice(price int64, expo int32) (uint64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrNonPositivePrice, price)
	}
	d := decimal.New(price, expo).Shift(PriceScale).Truncate(0)
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: normalizes to zero", ErrPriceOutOfRange)
	}
	if !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, d)
	}
	return d.BigInt().Uint64(), nil
}

// Settlement is the result of fixing a settlement price for one series.
type Settlement struct {
	Price               uint64 `json:"price"`                // normalized settlement price
	ITM                 bool   `json:"itm"`                  // price > strike
	ProfitPerClaim      uint64 `json:"profit_per_claim"`     // underlying units owed per claim; 0 if OTM
	TotalProfit         uint64 `json:"total_profit"`         // profitPerClaim × claim supply; 0 if OTM
	RemainingCollateral uint64 `json:"remaining_collateral"` // vault balance − totalProfit; full balance if OTM
}

// Settle computes the collateral split for a fixed settlement price.
//
// OTM (price ≤ strike): the full vault balance remains with the creator.
// ITM: profitPerClaim = lotSize × (price − strike) / price, truncated;
// the division by the settlement price converts the quote-currency move
// into underlying units, so holders are paid in kind.
func Settle(strike, price, lotSize, claimSupply, vaultBalance uint64) (Settlement, error) {
	s := Settlement{Price: price, RemainingCollateral: vaultBalance}
	if price <= strike {
		return s, nil
	}
	s.ITM = true

	itm := price - strike // price > strike, cannot underflow

	// lotSize × itm may exceed 64 bits; use a 128-bit intermediate.
	perClaim, err := checkedMulDiv(lotSize, itm, price)
	if err != nil {
		return Settlement{}, err
	}
	s.ProfitPerClaim = perClaim

	total, err := checkedMul(perClaim, claimSupply)
	if err != nil {
		return Settlement{}, err
	}
	s.TotalProfit = total

	if total > vaultBalance {
		return Settlement{}, fmt.Errorf("%w: profit %d, vault %d", ErrPayoutExceedsVault, total, vaultBalance)
	}
	s.RemainingCollateral = vaultBalance - total
	return s, nil
}

// --- checked arithmetic ---

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return lo, nil
}

// checkedMulDiv computes a × b / c with a 128-bit intermediate product.
func checkedMulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrOverflow)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrOverflow, a, b, c)
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

func pow10(n uint64) (uint64, error) {
	if n > 19 {
		return 0, fmt.Errorf("%w: 10^%d", ErrOverflow, n)
	}
	r := uint64(1)
	for i := uint64(0); i < n; i++ {
		r *= 10
	}
	return r, nil
}
