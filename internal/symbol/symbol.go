// Package symbol handles option series symbol generation, parsing, and
// validation.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// symbolRegex matches: OPT-{asset8}-{strike}-{YYYYMMDD}-{index}
// Example: OPT-1a2b3c4d-100000000-20260315-0
var symbolRegex = regexp.MustCompile(
	`^OPT-([0-9a-f]{8})-([0-9]+)-(\d{8})-(\d+)$`,
)

var (
	ErrInvalidSymbol = errors.New("symbol: invalid series symbol format")
	ErrInvalidStrike = errors.New("symbol: strike must be positive")
)

// Symbol is a parsed series symbol. The asset tag is the first eight hex
// characters of the underlying asset mint; the full mint id lives on the
// series record.
type Symbol struct {
	AssetTag    string    `json:"asset_tag"`
	Strike      uint64    `json:"strike"` // fixed-scale quote units
	ExpiryDate  time.Time `json:"expiry_date"`
	SeriesIndex uint64    `json:"series_index"`
}

// Format builds the canonical symbol string for a series.
func Format(assetMint string, strike uint64, expiry time.Time, index uint64) string {
	return fmt.Sprintf("OPT-%s-%d-%s-%d", assetTag(assetMint), strike, expiry.UTC().Format("20060102"), index)
}

// Parse parses and validates a series symbol string.
// Format: OPT-{asset8}-{strike}-{YYYYMMDD}-{index}
func Parse(s string) (*Symbol, error) {
	matches := symbolRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected OPT-{asset8}-{strike}-{YYYYMMDD}-{index})",
			ErrInvalidSymbol, s)
	}

	strike, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: strike %s", ErrInvalidSymbol, matches[2])
	}
	if strike == 0 {
		return nil, ErrInvalidStrike
	}

	expiry, err := time.Parse("20060102", matches[3])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidSymbol, matches[3])
	}

	index, err := strconv.ParseUint(matches[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: index %s", ErrInvalidSymbol, matches[4])
	}

	return &Symbol{
		AssetTag:    matches[1],
		Strike:      strike,
		ExpiryDate:  expiry,
		SeriesIndex: index,
	}, nil
}

// assetTag returns the first eight hex characters of an asset mint id,
// skipping anything else (UUID dashes included) and zero-padding short
// ids, so Format output always round-trips through Parse.
func assetTag(assetMint string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(assetMint) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			b.WriteByte(byte(r))
			if b.Len() == 8 {
				break
			}
		}
	}
	tag := b.String()
	for len(tag) < 8 {
		tag += "0"
	}
	return tag
}
