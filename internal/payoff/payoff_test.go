package payoff

import (
	"errors"
	"math"
	"testing"
)

func TestLotSize(t *testing.T) {
	tests := []struct {
		name     string
		decimals uint8
		want     uint64
		wantErr  error
	}{
		{"nine decimals", 9, 100000, nil},
		{"six decimals", 6, 100, nil},
		{"five decimals", 5, 10, nil},
		{"equal to claim decimals", 4, 1, nil},
		{"below claim decimals", 3, 0, ErrUnsupportedDecimals},
		{"zero decimals", 0, 0, ErrUnsupportedDecimals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LotSize(tt.decimals)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LotSize(%d) err = %v, want %v", tt.decimals, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LotSize(%d) unexpected error: %v", tt.decimals, err)
			}
			if got != tt.want {
				t.Errorf("LotSize(%d) = %d, want %d", tt.decimals, got, tt.want)
			}
		})
	}
}

func TestClaimsForCollateral(t *testing.T) {
	tests := []struct {
		name       string
		collateral uint64
		lotSize    uint64
		want       uint64
		wantErr    error
	}{
		{"exact multiple", 1000, 100, 10, nil},
		{"single lot", 100, 100, 1, nil},
		{"lot size one", 7, 1, 7, nil},
		{"not a multiple", 1050, 100, 0, ErrNotLotMultiple},
		{"below one lot", 50, 100, 0, ErrNotLotMultiple},
		{"zero lot size", 100, 0, 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClaimsForCollateral(tt.collateral, tt.lotSize)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClaimsForCollateral(%d, %d) = %d, want %d", tt.collateral, tt.lotSize, got, tt.want)
			}
		})
	}
}

func TestUnderlyingForClaimsRoundTrip(t *testing.T) {
	const lot = 100000 // 9-decimal underlying

	for _, claims := range []uint64{1, 5, 42, 1_000_000} {
		underlying, err := UnderlyingForClaims(claims, lot)
		if err != nil {
			t.Fatalf("UnderlyingForClaims(%d): %v", claims, err)
		}
		back, err := ClaimsForCollateral(underlying, lot)
		if err != nil {
			t.Fatalf("ClaimsForCollateral(%d): %v", underlying, err)
		}
		if back != claims {
			t.Errorf("round trip: %d claims -> %d units -> %d claims", claims, underlying, back)
		}
	}
}

func TestUnderlyingForClaimsOverflow(t *testing.T) {
	if _, err := UnderlyingForClaims(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Errorf("err = %v, want ErrOverflow", err)
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name    string
		price   int64
		expo    int32
		want    uint64
		wantErr error
	}{
		{"whole units", 150, 0, 150_000_000, nil},
		{"pyth style expo", 15_000_000_000, -8, 150_000_000, nil},
		{"two decimal cents", 12345, -2, 123_450_000, nil},
		{"already at scale", 150, -6, 150, nil},
		{"truncates extra precision", 1234567, -7, 123456, nil},
		{"positive exponent", 3, 2, 300_000_000, nil},
		{"zero price", 0, -6, 0, ErrNonPositivePrice},
		{"negative price", -5, -6, 0, ErrNonPositivePrice},
		{"underflows to zero", 1, -10, 0, ErrPriceOutOfRange},
		{"exceeds uint64", math.MaxInt64, 10, 0, ErrPriceOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice(tt.price, tt.expo)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizePrice(%d, %d) err = %v, want %v", tt.price, tt.expo, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePrice(%d, %d) unexpected error: %v", tt.price, tt.expo, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePrice(%d, %d) = %d, want %d", tt.price, tt.expo, got, tt.want)
			}
		})
	}
}

func TestSettleITM(t *testing.T) {
	// strike 100, price 150, lot 10, supply 5, vault 50:
	// perClaim = 10 * 50 / 150 = 3 (truncated), total = 15, remaining = 35.
	got, err := Settle(100, 150, 10, 5, 50)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	want := Settlement{
		Price:               150,
		ITM:                 true,
		ProfitPerClaim:      3,
		TotalProfit:         15,
		RemainingCollateral: 35,
	}
	if got != want {
		t.Errorf("Settle = %+v, want %+v", got, want)
	}
}

func TestSettleOTM(t *testing.T) {
	tests := []struct {
		name   string
		strike uint64
		price  uint64
	}{
		{"below strike", 100, 90},
		{"at strike", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Settle(tt.strike, tt.price, 10, 5, 50)
			if err != nil {
				t.Fatalf("Settle: %v", err)
			}
			if got.ITM {
				t.Error("expected OTM")
			}
			if got.ProfitPerClaim != 0 || got.TotalProfit != 0 {
				t.Errorf("OTM profit = %d/%d, want 0/0", got.ProfitPerClaim, got.TotalProfit)
			}
			if got.RemainingCollateral != 50 {
				t.Errorf("RemainingCollateral = %d, want full vault 50", got.RemainingCollateral)
			}
		})
	}
}

func TestSettleConservation(t *testing.T) {
	tests := []struct {
		strike, price, lot, supply, vault uint64
	}{
		{100, 150, 10, 5, 50},
		{100, 101, 10, 5, 50},
		{50, 199, 100000, 1000, 100_000_000},
		{1, 1_000_000, 10, 3, 30},
	}

	for _, tt := range tests {
		s, err := Settle(tt.strike, tt.price, tt.lot, tt.supply, tt.vault)
		if err != nil {
			t.Fatalf("Settle(%+v): %v", tt, err)
		}
		if s.TotalProfit+s.RemainingCollateral != tt.vault {
			t.Errorf("Settle(%+v): profit %d + remaining %d != vault %d",
				tt, s.TotalProfit, s.RemainingCollateral, tt.vault)
		}
	}
}

func TestSettleProfitNeverExceedsLot(t *testing.T) {
	// The in-kind payoff lot × (price − strike) / price is strictly below
	// lot for any finite price, so a full supply payout can never exceed
	// the escrowed collateral supply × lot.
	const lot = 100000
	for _, price := range []uint64{2, 100, 1_000_000, math.MaxUint64 / 2} {
		s, err := Settle(1, price, lot, 1, lot)
		if err != nil {
			t.Fatalf("Settle(price=%d): %v", price, err)
		}
		if s.ProfitPerClaim >= lot {
			t.Errorf("price %d: ProfitPerClaim %d >= lot %d", price, s.ProfitPerClaim, lot)
		}
	}
}

func TestSettlePayoutExceedsVault(t *testing.T) {
	// Supply larger than the vault can back signals upstream corruption.
	_, err := Settle(100, 200, 10, 100, 50)
	if !errors.Is(err, ErrPayoutExceedsVault) {
		t.Errorf("err = %v, want ErrPayoutExceedsVault", err)
	}
}

func TestSettleTotalProfitOverflow(t *testing.T) {
	// perClaim = MaxUint64/2, supply 3 wraps 64 bits.
	_, err := Settle(1, 2, math.MaxUint64, 3, math.MaxUint64)
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("err = %v, want ErrOverflow", err)
	}
}
