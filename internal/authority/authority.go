// Package authority derives the engine's key-less control identities and
// record addresses.
//
// Every record (underlying, series, vault, claim mint, token account) is
// located by a deterministic function of a fixed seed label, an owning
// identifier, and (for series-scoped records) the series index — never by
// a free-form address. Any caller can recompute a series' vault or mint
// address without a side lookup table.
//
// The two control identities ("mint authority", "vault authority") are
// derived from their seed label plus a one-byte nonce stored in the state
// record. They hold no secret: the ledger authorizes an internal mint,
// burn, or transfer by recomputing the identity and comparing.
package authority

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
)

// Seed labels. These are part of the addressing contract and must never
// change once records exist.
const (
	SeedState        = "state"
	SeedMintAuth     = "mint-auth"
	SeedVaultAuth    = "vault-auth"
	SeedUnderlying   = "underlying"
	SeedSeries       = "option-account"
	SeedClaimMint    = "option-mint"
	SeedVault        = "vault"
	SeedTokenAccount = "token-account"
)

// namespace is the fixed UUID namespace for all derivations. Identities
// are version-5 (SHA-1) UUIDs, so derivation is pure and reproducible.
var namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("options-engine"))

// Deriver produces deterministic identities. The zero value is unusable;
// use NewDeriver.
type Deriver struct {
	ns uuid.UUID
}

// NewDeriver returns a Deriver over the engine's fixed namespace.
func NewDeriver() *Deriver {
	return &Deriver{ns: namespace}
}

func (d *Deriver) derive(parts ...string) string {
	return uuid.NewSHA1(d.ns, []byte(strings.Join(parts, "/"))).String()
}

// StateID is the address of the singleton state record.
func (d *Deriver) StateID() string {
	return d.derive(SeedState)
}

// MintAuthority derives the identity that authorizes claim mint and burn
// calls issued by the engine itself.
func (d *Deriver) MintAuthority(nonce uint8) string {
	return d.derive(SeedMintAuth, string([]byte{nonce}))
}

// VaultAuthority derives the identity that owns every collateral vault.
func (d *Deriver) VaultAuthority(nonce uint8) string {
	return d.derive(SeedVaultAuth, string([]byte{nonce}))
}

// UnderlyingID is the address of the underlying record for an asset mint.
func (d *Deriver) UnderlyingID(assetMint string) string {
	return d.derive(SeedUnderlying, assetMint)
}

// SeriesID is the address of the option series record at a given index
// under an underlying.
func (d *Deriver) SeriesID(underlyingID string, index uint64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], index)
	return d.derive(SeedSeries, underlyingID, string(buf[:]))
}

// VaultID is the address of a series' collateral vault.
func (d *Deriver) VaultID(seriesID string) string {
	return d.derive(SeedVault, seriesID)
}

// ClaimMintID is the address of a series' claim mint.
func (d *Deriver) ClaimMintID(seriesID string) string {
	return d.derive(SeedClaimMint, seriesID)
}

// TokenAccountID is the address of a holder's token account for a mint.
func (d *Deriver) TokenAccountID(mint, owner string) string {
	return d.derive(SeedTokenAccount, mint, owner)
}
