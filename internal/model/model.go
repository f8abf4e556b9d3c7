// Package model defines the core records shared across the options engine.
// All token amounts are integer base units (uint64) — never float64.
package model

import "time"

// State is the singleton engine configuration. Created once at bootstrap;
// the admin identity is immutable afterwards.
type State struct {
	Admin            string    `json:"admin" db:"admin"`
	StateNonce       uint8     `json:"state_nonce" db:"state_nonce"`
	MintAuthNonce    uint8     `json:"mint_auth_nonce" db:"mint_auth_nonce"`
	VaultAuthNonce   uint8     `json:"vault_auth_nonce" db:"vault_auth_nonce"`
	SettlementWindow uint64    `json:"settlement_window_seconds" db:"settlement_window_seconds"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Underlying registers one backing asset: its mint, its oracle feed, and
// the strictly increasing series counter. Created by the admin only.
type Underlying struct {
	ID        string    `json:"id" db:"id"`
	AssetMint string    `json:"asset_mint" db:"asset_mint"`
	Oracle    string    `json:"oracle" db:"oracle"`
	Count     uint64    `json:"count" db:"count"` // next series index; never reused
	Nonce     uint8     `json:"nonce" db:"nonce"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OptionSeries is one option contract instance. It exclusively owns its
// collateral vault and claim mint (same lifetime). SettlementPrice == 0
// means the price has not been fixed yet.
type OptionSeries struct {
	ID           string `json:"id" db:"id"`
	Symbol       string `json:"symbol" db:"symbol"`
	UnderlyingID string `json:"underlying_id" db:"underlying_id"`
	SeriesIndex  uint64 `json:"series_index" db:"series_index"`

	Creator             string `json:"creator" db:"creator"`
	ClaimMint           string `json:"claim_mint" db:"claim_mint"`
	UnderlyingMint      string `json:"underlying_mint" db:"underlying_mint"`
	Vault               string `json:"vault" db:"vault"`
	CreatorClaimAccount string `json:"creator_claim_account" db:"creator_claim_account"`

	Strike uint64 `json:"strike" db:"strike"`
	Expiry int64  `json:"expiry" db:"expiry"` // unix seconds

	SettlementPrice     uint64 `json:"settlement_price" db:"settlement_price"`
	ProfitPerClaim      uint64 `json:"profit_per_claim" db:"profit_per_claim"`
	RemainingCollateral uint64 `json:"remaining_collateral" db:"remaining_collateral"`

	SeriesNonce uint8 `json:"series_nonce" db:"series_nonce"`
	MintNonce   uint8 `json:"mint_nonce" db:"mint_nonce"`
	VaultNonce  uint8 `json:"vault_nonce" db:"vault_nonce"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Settled reports whether the settlement price has been fixed.
func (s *OptionSeries) Settled() bool {
	return s.SettlementPrice != 0
}
