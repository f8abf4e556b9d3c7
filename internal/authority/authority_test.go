package authority

import (
	"testing"

	"github.com/google/uuid"
)

func TestDerivationIsDeterministic(t *testing.T) {
	a := NewDeriver()
	b := NewDeriver()

	if a.StateID() != b.StateID() {
		t.Error("StateID differs across derivers")
	}
	if a.MintAuthority(255) != b.MintAuthority(255) {
		t.Error("MintAuthority differs across derivers")
	}
	if a.VaultAuthority(255) != b.VaultAuthority(255) {
		t.Error("VaultAuthority differs across derivers")
	}

	u := a.UnderlyingID("1a2b3c4d-0000-0000-0000-000000000000")
	if u != b.UnderlyingID("1a2b3c4d-0000-0000-0000-000000000000") {
		t.Error("UnderlyingID differs across derivers")
	}

	s := a.SeriesID(u, 7)
	if s != b.SeriesID(u, 7) {
		t.Error("SeriesID differs across derivers")
	}
	if a.VaultID(s) != b.VaultID(s) {
		t.Error("VaultID differs across derivers")
	}
	if a.ClaimMintID(s) != b.ClaimMintID(s) {
		t.Error("ClaimMintID differs across derivers")
	}
	if a.TokenAccountID(s, "holder") != b.TokenAccountID(s, "holder") {
		t.Error("TokenAccountID differs across derivers")
	}
}

func TestDerivedIDsAreDistinct(t *testing.T) {
	d := NewDeriver()
	u := d.UnderlyingID("asset")
	s0 := d.SeriesID(u, 0)
	s1 := d.SeriesID(u, 1)

	ids := []string{
		d.StateID(),
		d.MintAuthority(255),
		d.VaultAuthority(255),
		u,
		s0,
		s1,
		d.VaultID(s0),
		d.VaultID(s1),
		d.ClaimMintID(s0),
		d.TokenAccountID(s0, "alice"),
		d.TokenAccountID(s0, "bob"),
	}

	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if j, ok := seen[id]; ok {
			t.Fatalf("ids[%d] collides with ids[%d]: %s", i, j, id)
		}
		seen[id] = i
	}
}

func TestNonceChangesAuthority(t *testing.T) {
	d := NewDeriver()
	if d.MintAuthority(254) == d.MintAuthority(255) {
		t.Error("different nonces derived the same mint authority")
	}
	if d.MintAuthority(255) == d.VaultAuthority(255) {
		t.Error("mint and vault authorities collide at the same nonce")
	}
}

func TestDerivedIDsAreValidUUIDs(t *testing.T) {
	d := NewDeriver()
	for _, id := range []string{
		d.StateID(),
		d.MintAuthority(255),
		d.UnderlyingID("asset"),
		d.SeriesID("underlying", 3),
	} {
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("id %q is not a UUID: %v", id, err)
		}
	}
}
