// Package ledger defines the narrow fungible-token interface the engine
// consumes: mint, burn, transfer, and account close primitives. The real
// token ledger is an external collaborator; this package specifies its
// contract and provides an in-memory implementation for development and
// tests.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrMintExists is returned when creating a mint at an occupied address.
	ErrMintExists = errors.New("ledger: mint already exists")

	// ErrAccountExists is returned when creating an account at an occupied address.
	ErrAccountExists = errors.New("ledger: account already exists")

	// ErrMintNotFound is returned for operations against an unknown mint.
	ErrMintNotFound = errors.New("ledger: mint not found")

	// ErrAccountNotFound is returned for operations against an unknown account.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrWrongMint is returned when an account's mint does not match the
	// operation's mint.
	ErrWrongMint = errors.New("ledger: token account mint mismatch")

	// ErrWrongAuthority is returned when the authorizing identity is not
	// entitled to the operation (not the mint authority, not the account
	// owner).
	ErrWrongAuthority = errors.New("ledger: wrong authority")

	// ErrInsufficientFunds is returned when a transfer or burn exceeds the
	// source balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrNonZeroBalance is returned when closing an account that still
	// holds tokens.
	ErrNonZeroBalance = errors.New("ledger: cannot close account with non-zero balance")
)

// Ledger is the token primitive contract. Every call is atomic on its own;
// Atomically groups several calls into one indivisible unit — either all
// apply or none do.
type Ledger interface {
	// CreateMint registers a new mint with the given precision. Only the
	// authority may later mint to it.
	CreateMint(ctx context.Context, mintID string, decimals uint8, authority string) error

	// CreateAccount registers a token account for a mint, owned by owner.
	CreateAccount(ctx context.Context, accountID, mintID, owner string) error

	// MintTo creates amount new tokens in dest. Authorized by the mint
	// authority.
	MintTo(ctx context.Context, mintID, dest, authority string, amount uint64) error

	// Burn destroys amount tokens in source. Authorized by the account
	// owner.
	Burn(ctx context.Context, mintID, source, authority string, amount uint64) error

	// Transfer moves amount tokens between accounts of the same mint.
	// Authorized by the source account owner.
	Transfer(ctx context.Context, source, dest, authority string, amount uint64) error

	// CloseAccount removes an empty account, crediting its storage cost
	// to rentDest. Authorized by the account owner.
	CloseAccount(ctx context.Context, accountID, rentDest, authority string) error

	// Balance returns an account's current balance.
	Balance(ctx context.Context, accountID string) (uint64, error)

	// Supply returns a mint's total outstanding supply.
	Supply(ctx context.Context, mintID string) (uint64, error)

	// Decimals returns a mint's precision.
	Decimals(ctx context.Context, mintID string) (uint8, error)

	// Atomically runs fn against the ledger as one unit of work. If fn
	// returns an error every mutation made inside it is rolled back and
	// the error is returned.
	Atomically(ctx context.Context, fn func(Ledger) error) error
}
