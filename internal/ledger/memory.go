package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
)

type mintInfo struct {
	decimals  uint8
	authority string
	supply    uint64
}

type accountInfo struct {
	mint    string
	owner   string
	balance uint64
}

// Memory implements Ledger with in-memory maps. Used for development and
// tests; a deployment against a real token ledger supplies its own
// implementation of the same interface.
type Memory struct {
	mu       sync.Mutex
	mints    map[string]*mintInfo
	accounts map[string]*accountInfo
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		mints:    make(map[string]*mintInfo),
		accounts: make(map[string]*accountInfo),
	}
}

func (l *Memory) CreateMint(_ context.Context, mintID string, decimals uint8, authority string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createMint(mintID, decimals, authority)
}

func (l *Memory) CreateAccount(_ context.Context, accountID, mintID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createAccount(accountID, mintID, owner)
}

func (l *Memory) MintTo(_ context.Context, mintID, dest, authority string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mintTo(mintID, dest, authority, amount)
}

func (l *Memory) Burn(_ context.Context, mintID, source, authority string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burn(mintID, source, authority, amount)
}

func (l *Memory) Transfer(_ context.Context, source, dest, authority string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(source, dest, authority, amount)
}

func (l *Memory) CloseAccount(_ context.Context, accountID, rentDest, authority string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeAccount(accountID, authority)
}

func (l *Memory) Balance(_ context.Context, accountID string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return acc.balance, nil
}

func (l *Memory) Supply(_ context.Context, mintID string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mintID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	return m.supply, nil
}

func (l *Memory) Decimals(_ context.Context, mintID string) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mintID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	return m.decimals, nil
}

// Atomically snapshots the ledger, runs fn against it, and restores the
// snapshot if fn fails. The unit holds the ledger lock for its entire
// duration, so no other operation can observe intermediate state.
func (l *Memory) Atomically(ctx context.Context, fn func(Ledger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	mints := make(map[string]*mintInfo, len(l.mints))
	for k, v := range l.mints {
		cp := *v
		mints[k] = &cp
	}
	accounts := make(map[string]*accountInfo, len(l.accounts))
	for k, v := range l.accounts {
		cp := *v
		accounts[k] = &cp
	}

	if err := fn(&txView{l}); err != nil {
		l.mints = mints
		l.accounts = accounts
		return err
	}
	return nil
}

// --- lock-free internals (caller holds l.mu) ---

func (l *Memory) createMint(mintID string, decimals uint8, authority string) error {
	if _, ok := l.mints[mintID]; ok {
		return fmt.Errorf("%w: %s", ErrMintExists, mintID)
	}
	l.mints[mintID] = &mintInfo{decimals: decimals, authority: authority}
	return nil
}

func (l *Memory) createAccount(accountID, mintID, owner string) error {
	if _, ok := l.mints[mintID]; !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	if _, ok := l.accounts[accountID]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, accountID)
	}
	l.accounts[accountID] = &accountInfo{mint: mintID, owner: owner}
	return nil
}

func (l *Memory) mintTo(mintID, dest, authority string, amount uint64) error {
	m, ok := l.mints[mintID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	if m.authority != authority {
		return fmt.Errorf("%w: not the mint authority", ErrWrongAuthority)
	}
	acc, ok := l.accounts[dest]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, dest)
	}
	if acc.mint != mintID {
		return fmt.Errorf("%w: account %s", ErrWrongMint, dest)
	}
	if amount > math.MaxUint64-m.supply {
		return fmt.Errorf("ledger: supply overflow on mint %s", mintID)
	}
	m.supply += amount
	acc.balance += amount
	return nil
}

func (l *Memory) burn(mintID, source, authority string, amount uint64) error {
	m, ok := l.mints[mintID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	acc, ok := l.accounts[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, source)
	}
	if acc.mint != mintID {
		return fmt.Errorf("%w: account %s", ErrWrongMint, source)
	}
	if acc.owner != authority {
		return fmt.Errorf("%w: not the account owner", ErrWrongAuthority)
	}
	if acc.balance < amount {
		return fmt.Errorf("%w: balance %d, burn %d", ErrInsufficientFunds, acc.balance, amount)
	}
	acc.balance -= amount
	m.supply -= amount
	return nil
}

func (l *Memory) transfer(source, dest, authority string, amount uint64) error {
	src, ok := l.accounts[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, source)
	}
	dst, ok := l.accounts[dest]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, dest)
	}
	if src.mint != dst.mint {
		return fmt.Errorf("%w: %s -> %s", ErrWrongMint, source, dest)
	}
	if src.owner != authority {
		return fmt.Errorf("%w: not the source owner", ErrWrongAuthority)
	}
	if src.balance < amount {
		return fmt.Errorf("%w: balance %d, transfer %d", ErrInsufficientFunds, src.balance, amount)
	}
	src.balance -= amount
	dst.balance += amount
	return nil
}

func (l *Memory) closeAccount(accountID, authority string) error {
	acc, ok := l.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if acc.owner != authority {
		return fmt.Errorf("%w: not the account owner", ErrWrongAuthority)
	}
	if acc.balance != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrNonZeroBalance, accountID, acc.balance)
	}
	delete(l.accounts, accountID)
	return nil
}

// txView exposes the internals of a Memory ledger inside an Atomically
// unit without re-acquiring the lock.
type txView struct {
	m *Memory
}

func (v *txView) CreateMint(_ context.Context, mintID string, decimals uint8, authority string) error {
	return v.m.createMint(mintID, decimals, authority)
}

func (v *txView) CreateAccount(_ context.Context, accountID, mintID, owner string) error {
	return v.m.createAccount(accountID, mintID, owner)
}

func (v *txView) MintTo(_ context.Context, mintID, dest, authority string, amount uint64) error {
	return v.m.mintTo(mintID, dest, authority, amount)
}

func (v *txView) Burn(_ context.Context, mintID, source, authority string, amount uint64) error {
	return v.m.burn(mintID, source, authority, amount)
}

func (v *txView) Transfer(_ context.Context, source, dest, authority string, amount uint64) error {
	return v.m.transfer(source, dest, authority, amount)
}

func (v *txView) CloseAccount(_ context.Context, accountID, rentDest, authority string) error {
	return v.m.closeAccount(accountID, authority)
}

func (v *txView) Balance(_ context.Context, accountID string) (uint64, error) {
	acc, ok := v.m.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return acc.balance, nil
}

func (v *txView) Supply(_ context.Context, mintID string) (uint64, error) {
	m, ok := v.m.mints[mintID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	return m.supply, nil
}

func (v *txView) Decimals(_ context.Context, mintID string) (uint8, error) {
	m, ok := v.m.mints[mintID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mintID)
	}
	return m.decimals, nil
}

func (v *txView) Atomically(ctx context.Context, fn func(Ledger) error) error {
	// Already inside a unit; nested calls join it.
	return fn(v)
}
