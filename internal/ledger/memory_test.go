package ledger

import (
	"context"
	"errors"
	"testing"
)

func newTestLedger(t *testing.T) (*Memory, context.Context) {
	t.Helper()
	return NewMemory(), context.Background()
}

func TestCreateMintAndAccount(t *testing.T) {
	l, ctx := newTestLedger(t)

	if err := l.CreateMint(ctx, "mint", 9, "auth"); err != nil {
		t.Fatalf("CreateMint: %v", err)
	}
	if err := l.CreateMint(ctx, "mint", 9, "auth"); !errors.Is(err, ErrMintExists) {
		t.Errorf("duplicate mint err = %v, want ErrMintExists", err)
	}

	if err := l.CreateAccount(ctx, "acc", "mint", "alice"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := l.CreateAccount(ctx, "acc", "mint", "alice"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate account err = %v, want ErrAccountExists", err)
	}
	if err := l.CreateAccount(ctx, "acc2", "no-such-mint", "alice"); !errors.Is(err, ErrMintNotFound) {
		t.Errorf("unknown mint err = %v, want ErrMintNotFound", err)
	}

	d, err := l.Decimals(ctx, "mint")
	if err != nil || d != 9 {
		t.Errorf("Decimals = %d, %v, want 9, nil", d, err)
	}
	b, err := l.Balance(ctx, "acc")
	if err != nil || b != 0 {
		t.Errorf("Balance = %d, %v, want 0, nil", b, err)
	}
}

func TestMintBurnSupply(t *testing.T) {
	l, ctx := newTestLedger(t)
	l.CreateMint(ctx, "mint", 6, "auth")
	l.CreateAccount(ctx, "acc", "mint", "alice")

	if err := l.MintTo(ctx, "mint", "acc", "not-auth", 100); !errors.Is(err, ErrWrongAuthority) {
		t.Errorf("mint by non-authority err = %v, want ErrWrongAuthority", err)
	}
	if err := l.MintTo(ctx, "mint", "acc", "auth", 100); err != nil {
		t.Fatalf("MintTo: %v", err)
	}

	supply, _ := l.Supply(ctx, "mint")
	if supply != 100 {
		t.Errorf("Supply = %d, want 100", supply)
	}

	// Burn is authorized by the account owner, not the mint authority.
	if err := l.Burn(ctx, "mint", "acc", "auth", 40); !errors.Is(err, ErrWrongAuthority) {
		t.Errorf("burn by non-owner err = %v, want ErrWrongAuthority", err)
	}
	if err := l.Burn(ctx, "mint", "acc", "alice", 40); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if err := l.Burn(ctx, "mint", "acc", "alice", 1000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overburn err = %v, want ErrInsufficientFunds", err)
	}

	supply, _ = l.Supply(ctx, "mint")
	balance, _ := l.Balance(ctx, "acc")
	if supply != 60 || balance != 60 {
		t.Errorf("after burn: supply %d balance %d, want 60/60", supply, balance)
	}
}

func TestTransfer(t *testing.T) {
	l, ctx := newTestLedger(t)
	l.CreateMint(ctx, "mint", 6, "auth")
	l.CreateMint(ctx, "other", 6, "auth")
	l.CreateAccount(ctx, "src", "mint", "alice")
	l.CreateAccount(ctx, "dst", "mint", "bob")
	l.CreateAccount(ctx, "wrong", "other", "bob")
	l.MintTo(ctx, "mint", "src", "auth", 100)

	tests := []struct {
		name      string
		dst       string
		authority string
		amount    uint64
		wantErr   error
	}{
		{"wrong owner", "dst", "bob", 10, ErrWrongAuthority},
		{"mint mismatch", "wrong", "alice", 10, ErrWrongMint},
		{"insufficient", "dst", "alice", 1000, ErrInsufficientFunds},
		{"ok", "dst", "alice", 30, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(ctx, "src", tt.dst, tt.authority, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Transfer err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	srcBal, _ := l.Balance(ctx, "src")
	dstBal, _ := l.Balance(ctx, "dst")
	if srcBal != 70 || dstBal != 30 {
		t.Errorf("balances = %d/%d, want 70/30", srcBal, dstBal)
	}
}

func TestCloseAccount(t *testing.T) {
	l, ctx := newTestLedger(t)
	l.CreateMint(ctx, "mint", 6, "auth")
	l.CreateAccount(ctx, "acc", "mint", "alice")
	l.MintTo(ctx, "mint", "acc", "auth", 10)

	if err := l.CloseAccount(ctx, "acc", "alice", "alice"); !errors.Is(err, ErrNonZeroBalance) {
		t.Errorf("close funded account err = %v, want ErrNonZeroBalance", err)
	}
	l.Burn(ctx, "mint", "acc", "alice", 10)

	if err := l.CloseAccount(ctx, "acc", "alice", "bob"); !errors.Is(err, ErrWrongAuthority) {
		t.Errorf("close by non-owner err = %v, want ErrWrongAuthority", err)
	}
	if err := l.CloseAccount(ctx, "acc", "alice", "alice"); err != nil {
		t.Fatalf("CloseAccount: %v", err)
	}
	if _, err := l.Balance(ctx, "acc"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("balance of closed account err = %v, want ErrAccountNotFound", err)
	}
}

func TestAtomicallyCommits(t *testing.T) {
	l, ctx := newTestLedger(t)
	l.CreateMint(ctx, "mint", 6, "auth")
	l.CreateAccount(ctx, "a", "mint", "alice")
	l.CreateAccount(ctx, "b", "mint", "bob")
	l.MintTo(ctx, "mint", "a", "auth", 100)

	err := l.Atomically(ctx, func(tx Ledger) error {
		if err := tx.Transfer(ctx, "a", "b", "alice", 60); err != nil {
			return err
		}
		return tx.Burn(ctx, "mint", "b", "bob", 10)
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}

	aBal, _ := l.Balance(ctx, "a")
	bBal, _ := l.Balance(ctx, "b")
	supply, _ := l.Supply(ctx, "mint")
	if aBal != 40 || bBal != 50 || supply != 90 {
		t.Errorf("after commit: a=%d b=%d supply=%d, want 40/50/90", aBal, bBal, supply)
	}
}

func TestAtomicallyRollsBack(t *testing.T) {
	l, ctx := newTestLedger(t)
	l.CreateMint(ctx, "mint", 6, "auth")
	l.CreateAccount(ctx, "a", "mint", "alice")
	l.CreateAccount(ctx, "b", "mint", "bob")
	l.MintTo(ctx, "mint", "a", "auth", 100)

	err := l.Atomically(ctx, func(tx Ledger) error {
		if err := tx.Transfer(ctx, "a", "b", "alice", 60); err != nil {
			return err
		}
		if err := tx.CreateMint(ctx, "mint2", 4, "auth"); err != nil {
			return err
		}
		// Fails: bob holds only 50.
		return tx.Burn(ctx, "mint", "b", "bob", 1000)
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// Every step rolled back, including the new mint.
	aBal, _ := l.Balance(ctx, "a")
	bBal, _ := l.Balance(ctx, "b")
	if aBal != 100 || bBal != 0 {
		t.Errorf("after rollback: a=%d b=%d, want 100/0", aBal, bBal)
	}
	if _, err := l.Supply(ctx, "mint2"); !errors.Is(err, ErrMintNotFound) {
		t.Errorf("mint2 survived rollback: %v", err)
	}
}

func TestAtomicallyNestedJoinsUnit(t *testing.T) {
	l, ctx := newTestLedger(t)
	l.CreateMint(ctx, "mint", 6, "auth")
	l.CreateAccount(ctx, "a", "mint", "alice")
	l.MintTo(ctx, "mint", "a", "auth", 10)

	err := l.Atomically(ctx, func(tx Ledger) error {
		return tx.Atomically(ctx, func(inner Ledger) error {
			return inner.Burn(ctx, "mint", "a", "alice", 4)
		})
	})
	if err != nil {
		t.Fatalf("nested Atomically: %v", err)
	}
	if bal, _ := l.Balance(ctx, "a"); bal != 6 {
		t.Errorf("balance = %d, want 6", bal)
	}
}
