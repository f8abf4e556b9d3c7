package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optix/options-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Token amounts and counters are stored as NUMERIC(20,0) so the full
// uint64 range round-trips exactly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func u64(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func u64s(v uint64) string { return strconv.FormatUint(v, 10) }

func (s *PostgresStore) CreateState(ctx context.Context, st *model.State) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO engine_state (singleton, admin, state_nonce, mint_auth_nonce, vault_auth_nonce, settlement_window_seconds, created_at)
		 VALUES (TRUE, $1, $2, $3, $4, $5::NUMERIC, $6)`,
		st.Admin, int16(st.StateNonce), int16(st.MintAuthNonce), int16(st.VaultAuthNonce),
		u64s(st.SettlementWindow), st.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: state", ErrAlreadyExists)
	}
	return err
}

func (s *PostgresStore) GetState(ctx context.Context) (*model.State, error) {
	var st model.State
	var stateNonce, mintNonce, vaultNonce int16
	var window string

	err := s.pool.QueryRow(ctx,
		`SELECT admin, state_nonce, mint_auth_nonce, vault_auth_nonce,
		        settlement_window_seconds::TEXT, created_at
		 FROM engine_state WHERE singleton`).
		Scan(&st.Admin, &stateNonce, &mintNonce, &vaultNonce, &window, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: state", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	st.StateNonce = uint8(stateNonce)
	st.MintAuthNonce = uint8(mintNonce)
	st.VaultAuthNonce = uint8(vaultNonce)
	st.SettlementWindow = u64(window)
	return &st, nil
}

func (s *PostgresStore) CreateUnderlying(ctx context.Context, u *model.Underlying) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO underlyings (id, asset_mint, oracle, count, nonce, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)`,
		u.ID, u.AssetMint, u.Oracle, u64s(u.Count), int16(u.Nonce), u.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: underlying %s", ErrAlreadyExists, u.ID)
	}
	return err
}

func (s *PostgresStore) GetUnderlying(ctx context.Context, id string) (*model.Underlying, error) {
	return s.getUnderlying(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetUnderlyingByAsset(ctx context.Context, assetMint string) (*model.Underlying, error) {
	return s.getUnderlying(ctx, `asset_mint = $1`, assetMint)
}

func (s *PostgresStore) getUnderlying(ctx context.Context, where, arg string) (*model.Underlying, error) {
	var u model.Underlying
	var count string
	var nonce int16

	err := s.pool.QueryRow(ctx,
		`SELECT id, asset_mint, oracle, count::TEXT, nonce, created_at
		 FROM underlyings WHERE `+where, arg).
		Scan(&u.ID, &u.AssetMint, &u.Oracle, &count, &nonce, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: underlying %s", ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get underlying %s: %w", arg, err)
	}

	u.Count = u64(count)
	u.Nonce = uint8(nonce)
	return &u, nil
}

func (s *PostgresStore) ListUnderlyings(ctx context.Context) ([]model.Underlying, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_mint, oracle, count::TEXT, nonce, created_at
		 FROM underlyings ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Underlying
	for rows.Next() {
		var u model.Underlying
		var count string
		var nonce int16
		if err := rows.Scan(&u.ID, &u.AssetMint, &u.Oracle, &count, &nonce, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Count = u64(count)
		u.Nonce = uint8(nonce)
		out = append(out, u)
	}
	return out, rows.Err()
}

// NextSeriesIndex relies on the database's row-level serialization of
// conflicting writes: the UPDATE..RETURNING is a single atomic
// compare-and-increment with no lost updates.
func (s *PostgresStore) NextSeriesIndex(ctx context.Context, underlyingID string) (uint64, error) {
	var prev string
	err := s.pool.QueryRow(ctx,
		`UPDATE underlyings SET count = count + 1
		 WHERE id = $1
		 RETURNING (count - 1)::TEXT`, underlyingID).
		Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: underlying %s", ErrNotFound, underlyingID)
	}
	if err != nil {
		return 0, fmt.Errorf("next series index for %s: %w", underlyingID, err)
	}
	return u64(prev), nil
}

func (s *PostgresStore) CreateSeries(ctx context.Context, sr *model.OptionSeries) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO option_series
		   (id, symbol, underlying_id, series_index, creator, claim_mint, underlying_mint,
		    vault, creator_claim_account, strike, expiry, settlement_price, profit_per_claim,
		    remaining_collateral, series_nonce, mint_nonce, vault_nonce, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7, $8, $9, $10::NUMERIC, $11,
		         $12::NUMERIC, $13::NUMERIC, $14::NUMERIC, $15, $16, $17, $18)`,
		sr.ID, sr.Symbol, sr.UnderlyingID, u64s(sr.SeriesIndex),
		sr.Creator, sr.ClaimMint, sr.UnderlyingMint,
		sr.Vault, sr.CreatorClaimAccount,
		u64s(sr.Strike), sr.Expiry,
		u64s(sr.SettlementPrice), u64s(sr.ProfitPerClaim), u64s(sr.RemainingCollateral),
		int16(sr.SeriesNonce), int16(sr.MintNonce), int16(sr.VaultNonce),
		sr.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: series %s", ErrAlreadyExists, sr.ID)
	}
	return err
}

const seriesColumns = `id, symbol, underlying_id, series_index::TEXT, creator, claim_mint,
	underlying_mint, vault, creator_claim_account, strike::TEXT, expiry,
	settlement_price::TEXT, profit_per_claim::TEXT, remaining_collateral::TEXT,
	series_nonce, mint_nonce, vault_nonce, created_at`

func (s *PostgresStore) GetSeries(ctx context.Context, id string) (*model.OptionSeries, error) {
	return s.getSeries(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetSeriesBySymbol(ctx context.Context, sym string) (*model.OptionSeries, error) {
	return s.getSeries(ctx, `symbol = $1`, sym)
}

func (s *PostgresStore) getSeries(ctx context.Context, where, arg string) (*model.OptionSeries, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+seriesColumns+` FROM option_series WHERE `+where, arg)

	sr, err := scanSeries(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: series %s", ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get series %s: %w", arg, err)
	}
	return sr, nil
}

func (s *PostgresStore) ListSeries(ctx context.Context) ([]model.OptionSeries, error) {
	return s.listSeries(ctx,
		`SELECT `+seriesColumns+` FROM option_series ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListSeriesByUnderlying(ctx context.Context, underlyingID string) ([]model.OptionSeries, error) {
	return s.listSeries(ctx,
		`SELECT `+seriesColumns+` FROM option_series
		 WHERE underlying_id = $1 ORDER BY series_index`, underlyingID)
}

func (s *PostgresStore) listSeries(ctx context.Context, query string, args ...any) ([]model.OptionSeries, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OptionSeries
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateSettlement(ctx context.Context, id string, price, profitPerClaim, remaining uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE option_series
		 SET settlement_price = $2::NUMERIC,
		     profit_per_claim = $3::NUMERIC,
		     remaining_collateral = $4::NUMERIC
		 WHERE id = $1`,
		id, u64s(price), u64s(profitPerClaim), u64s(remaining),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: series %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) DeleteSeries(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM option_series WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: series %s", ErrNotFound, id)
	}
	return nil
}

// scanner covers both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSeries(row scanner) (*model.OptionSeries, error) {
	var sr model.OptionSeries
	var index, strike, price, profit, remaining string
	var seriesNonce, mintNonce, vaultNonce int16

	if err := row.Scan(&sr.ID, &sr.Symbol, &sr.UnderlyingID, &index,
		&sr.Creator, &sr.ClaimMint, &sr.UnderlyingMint,
		&sr.Vault, &sr.CreatorClaimAccount, &strike, &sr.Expiry,
		&price, &profit, &remaining,
		&seriesNonce, &mintNonce, &vaultNonce, &sr.CreatedAt); err != nil {
		return nil, err
	}

	sr.SeriesIndex = u64(index)
	sr.Strike = u64(strike)
	sr.SettlementPrice = u64(price)
	sr.ProfitPerClaim = u64(profit)
	sr.RemainingCollateral = u64(remaining)
	sr.SeriesNonce = uint8(seriesNonce)
	sr.MintNonce = uint8(mintNonce)
	sr.VaultNonce = uint8(vaultNonce)
	return &sr, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
