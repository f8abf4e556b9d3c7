package symbol

import (
	"errors"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	expiry := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		assetMint string
		strike    uint64
		index     uint64
		want      string
	}{
		{
			name:      "uuid mint",
			assetMint: "1a2b3c4d-5e6f-7081-92a3-b4c5d6e7f809",
			strike:    100_000_000,
			index:     0,
			want:      "OPT-1a2b3c4d-100000000-20260315-0",
		},
		{
			name:      "upper case mint normalized",
			assetMint: "ABCDEF01-0000-0000-0000-000000000000",
			strike:    250,
			index:     12,
			want:      "OPT-abcdef01-250-20260315-12",
		},
		{
			name:      "non hex mint filtered and padded",
			assetMint: "SOL-mainnet",
			strike:    100,
			index:     1,
			want:      "OPT-ae000000-100-20260315-1",
		},
		{
			name:      "empty mint pads to zeros",
			assetMint: "",
			strike:    100,
			index:     0,
			want:      "OPT-00000000-100-20260315-0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.assetMint, tt.strike, expiry, tt.index)
			if got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	sym, err := Parse("OPT-1a2b3c4d-100000000-20260315-7")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sym.AssetTag != "1a2b3c4d" {
		t.Errorf("AssetTag = %q, want 1a2b3c4d", sym.AssetTag)
	}
	if sym.Strike != 100_000_000 {
		t.Errorf("Strike = %d, want 100000000", sym.Strike)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !sym.ExpiryDate.Equal(want) {
		t.Errorf("ExpiryDate = %v, want %v", sym.ExpiryDate, want)
	}
	if sym.SeriesIndex != 7 {
		t.Errorf("SeriesIndex = %d, want 7", sym.SeriesIndex)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrInvalidSymbol},
		{"wrong prefix", "FUT-1a2b3c4d-100-20260315-0", ErrInvalidSymbol},
		{"short asset tag", "OPT-1a2b3c-100-20260315-0", ErrInvalidSymbol},
		{"non hex asset tag", "OPT-zzzzzzzz-100-20260315-0", ErrInvalidSymbol},
		{"missing index", "OPT-1a2b3c4d-100-20260315", ErrInvalidSymbol},
		{"bad date length", "OPT-1a2b3c4d-100-202603-0", ErrInvalidSymbol},
		{"impossible date", "OPT-1a2b3c4d-100-20261340-0", ErrInvalidSymbol},
		{"zero strike", "OPT-1a2b3c4d-0-20260315-0", ErrInvalidStrike},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	expiry := time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	s := Format("deadbeef-aaaa-bbbb-cccc-000000000000", 42_000_000, expiry, 3)

	sym, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if sym.AssetTag != "deadbeef" || sym.Strike != 42_000_000 || sym.SeriesIndex != 3 {
		t.Errorf("round trip mismatch: %+v", sym)
	}
	if !sym.ExpiryDate.Equal(expiry) {
		t.Errorf("ExpiryDate = %v, want %v", sym.ExpiryDate, expiry)
	}
}

// Format output must parse no matter what the asset mint id looks like.
func TestFormatAlwaysParses(t *testing.T) {
	expiry := time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)

	for _, mint := range []string{
		"1a2b3c4d-5e6f-7081-92a3-b4c5d6e7f809",
		"SOL-mainnet",
		"wrapped_BTC",
		"xyz", // no hex characters at all
		"",
	} {
		s := Format(mint, 100, expiry, 2)
		sym, err := Parse(s)
		if err != nil {
			t.Errorf("Parse(Format(%q)) = %v", mint, err)
			continue
		}
		if sym.Strike != 100 || sym.SeriesIndex != 2 {
			t.Errorf("round trip for %q: %+v", mint, sym)
		}
	}
}
