/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * holding transfer records, restrictions, velocity records, privileges, consumed
 * nonces, and the singleton engine configuration row.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - The hosted settlement environment the engine was designed for applies one
 *   operation at a time with built-in all-or-nothing semantics. PostgreSQL has no
 *   such guarantee, so `RunAtomic` wraps the whole unit of work in a database
 *   transaction: a failed batch rolls back nonce consumption, velocity counter
 *   advancement, the history insert, and both counters in one stroke.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ToyinB/batchpay/internal/domain"
)

// querier is the subset of pgx operations shared by pgxpool.Pool and pgx.Tx,
// letting the same query methods serve both pooled and transactional calls.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   querier
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

// RunAtomic executes fn inside a database transaction. A repository already
// inside a transaction runs fn directly; the outer boundary owns the commit.
func (r *PostgresRepository) RunAtomic(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	txRepo := &PostgresRepository{db: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// EnsureSchema creates the backing tables when absent and seeds the singleton
// configuration row so a fresh database is immediately serviceable. Seeding is
// write-once: an existing configuration row is never overwritten.
func (r *PostgresRepository) EnsureSchema(ctx context.Context, treasuryAccount string, feeBasisPoints int64) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS engine_config (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			paused BOOLEAN NOT NULL DEFAULT FALSE,
			fee_basis_points BIGINT NOT NULL DEFAULT 0,
			treasury_account TEXT NOT NULL DEFAULT '',
			lifetime_transfer_count BIGINT NOT NULL DEFAULT 0,
			event_sequence BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS transfer_records (
			id BIGINT PRIMARY KEY,
			initiator TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			total_amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			memo TEXT,
			total_fee BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS restrictions (
			account TEXT PRIMARY KEY,
			restricted_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS velocity_records (
			account TEXT PRIMARY KEY,
			last_activity TIMESTAMPTZ NOT NULL,
			window_count INTEGER NOT NULL,
			window_amount BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS privileges (
			account TEXT PRIMARY KEY,
			unlimited BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS nonces (
			account TEXT NOT NULL,
			nonce BIGINT NOT NULL,
			consumed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (account, nonce)
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO engine_config (id, paused, fee_basis_points, treasury_account)
		VALUES (1, FALSE, $1, $2)
		ON CONFLICT (id) DO NOTHING`,
		feeBasisPoints, treasuryAccount,
	)
	return err
}

// GetEngineConfig reads the singleton configuration row.
func (r *PostgresRepository) GetEngineConfig(ctx context.Context) (*domain.EngineConfig, error) {
	var cfg domain.EngineConfig
	err := r.db.QueryRow(ctx, `
		SELECT paused, fee_basis_points, treasury_account, lifetime_transfer_count, event_sequence
		FROM engine_config WHERE id = 1`,
	).Scan(&cfg.Paused, &cfg.FeeBasisPoints, &cfg.TreasuryAccount, &cfg.LifetimeTransferCount, &cfg.EventSequence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// SetPaused flips the operational flag.
func (r *PostgresRepository) SetPaused(ctx context.Context, paused bool) error {
	_, err := r.db.Exec(ctx, `UPDATE engine_config SET paused = $1 WHERE id = 1`, paused)
	return err
}

// SetFeeBasisPoints assigns the fee rate. Range validation belongs to the caller.
func (r *PostgresRepository) SetFeeBasisPoints(ctx context.Context, bps int64) error {
	_, err := r.db.Exec(ctx, `UPDATE engine_config SET fee_basis_points = $1 WHERE id = 1`, bps)
	return err
}

// SetTreasuryAccount assigns the fee destination account.
func (r *PostgresRepository) SetTreasuryAccount(ctx context.Context, account string) error {
	_, err := r.db.Exec(ctx, `UPDATE engine_config SET treasury_account = $1 WHERE id = 1`, account)
	return err
}

// NextTransferID advances the lifetime transfer counter and returns the new value.
func (r *PostgresRepository) NextTransferID(ctx context.Context) (uint64, error) {
	var id uint64
	err := r.db.QueryRow(ctx, `
		UPDATE engine_config SET lifetime_transfer_count = lifetime_transfer_count + 1
		WHERE id = 1 RETURNING lifetime_transfer_count`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConfigNotFound
		}
		return 0, err
	}
	return id, nil
}

// NextEventSequence advances the global event counter and returns the new value.
func (r *PostgresRepository) NextEventSequence(ctx context.Context) (uint64, error) {
	var seq uint64
	err := r.db.QueryRow(ctx, `
		UPDATE engine_config SET event_sequence = event_sequence + 1
		WHERE id = 1 RETURNING event_sequence`,
	).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConfigNotFound
		}
		return 0, err
	}
	return seq, nil
}

// CreateTransferRecord inserts the immutable history entry for a committed batch.
func (r *PostgresRepository) CreateTransferRecord(ctx context.Context, rec *domain.TransferRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transfer_records (id, initiator, recorded_at, total_amount, status, memo, total_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Initiator, rec.Timestamp, rec.TotalAmount, rec.Status, rec.Memo, rec.TotalFee,
	)
	return err
}

// GetTransferRecord fetches a history entry by its transfer id.
func (r *PostgresRepository) GetTransferRecord(ctx context.Context, id uint64) (*domain.TransferRecord, error) {
	var rec domain.TransferRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, initiator, recorded_at, total_amount, status, memo, total_fee
		FROM transfer_records WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Initiator, &rec.Timestamp, &rec.TotalAmount, &rec.Status, &rec.Memo, &rec.TotalFee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Restrict adds an account to the trust registry's restricted set.
// Restricting an already-restricted account keeps the original timestamp.
func (r *PostgresRepository) Restrict(ctx context.Context, account string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO restrictions (account, restricted_at)
		VALUES ($1, $2)
		ON CONFLICT (account) DO NOTHING`,
		account, at,
	)
	return err
}

// Unrestrict removes an account from the restricted set.
func (r *PostgresRepository) Unrestrict(ctx context.Context, account string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM restrictions WHERE account = $1`, account)
	return err
}

// IsRestricted reports whether the account may not receive transfers.
func (r *PostgresRepository) IsRestricted(ctx context.Context, account string) (bool, error) {
	var restricted bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM restrictions WHERE account = $1)`, account).Scan(&restricted)
	if err != nil {
		return false, err
	}
	return restricted, nil
}

// GetVelocityRecord fetches the account's window counters.
func (r *PostgresRepository) GetVelocityRecord(ctx context.Context, account string) (*domain.VelocityRecord, error) {
	var rec domain.VelocityRecord
	err := r.db.QueryRow(ctx, `
		SELECT account, last_activity, window_count, window_amount
		FROM velocity_records WHERE account = $1`, account,
	).Scan(&rec.Account, &rec.LastActivity, &rec.WindowCount, &rec.WindowAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVelocityRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// PutVelocityRecord upserts the account's window counters.
func (r *PostgresRepository) PutVelocityRecord(ctx context.Context, rec *domain.VelocityRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO velocity_records (account, last_activity, window_count, window_amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account) DO UPDATE
		SET last_activity = EXCLUDED.last_activity,
		    window_count = EXCLUDED.window_count,
		    window_amount = EXCLUDED.window_amount`,
		rec.Account, rec.LastActivity, rec.WindowCount, rec.WindowAmount,
	)
	return err
}

// GrantPrivilege marks an account exempt from velocity limits.
func (r *PostgresRepository) GrantPrivilege(ctx context.Context, account string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO privileges (account, unlimited)
		VALUES ($1, TRUE)
		ON CONFLICT (account) DO UPDATE SET unlimited = TRUE`,
		account,
	)
	return err
}

// HasPrivilege reports whether the account holds an unlimited-transfer privilege.
func (r *PostgresRepository) HasPrivilege(ctx context.Context, account string) (bool, error) {
	var unlimited bool
	err := r.db.QueryRow(ctx, `SELECT unlimited FROM privileges WHERE account = $1`, account).Scan(&unlimited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return unlimited, nil
}

// ConsumeNonce marks (account, nonce) used, returning false on replay.
// The primary key on (account, nonce) makes the pair write-once.
func (r *PostgresRepository) ConsumeNonce(ctx context.Context, account string, nonce uint64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO nonces (account, nonce, consumed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account, nonce) DO NOTHING`,
		account, nonce,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
