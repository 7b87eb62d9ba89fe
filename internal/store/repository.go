/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * state the batch engine owns: transfer history, the trust registry, velocity
 * records, velocity privileges, consumed nonces, and the singleton engine
 * configuration. By defining an interface, we decouple the engine's business logic
 * from the specific storage implementation (PostgreSQL in production, in-memory in
 * tests), making the code modular and easy to test.
 *
 * @notes
 * - `RunAtomic` is the all-or-nothing boundary for a batch: every repository
 *   mutation performed inside the callback is discarded if the callback returns an
 *   error. The Postgres implementation maps this to a database transaction; the
 *   in-memory implementation restores a snapshot.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/ToyinB/batchpay/internal/domain"
)

var (
	ErrTransferRecordNotFound = errors.New("transfer record not found")
	ErrVelocityRecordNotFound = errors.New("velocity record not found")
	ErrConfigNotFound         = errors.New("engine config not found")
)

// Repository defines the set of methods for interacting with engine state.
type Repository interface {
	// RunAtomic executes fn as one indivisible unit of work. The repository
	// passed to fn sees and produces mutations that are committed only if fn
	// returns nil; on error every mutation is rolled back.
	RunAtomic(ctx context.Context, fn func(Repository) error) error

	// Engine configuration. Each setter is a single atomic assignment.
	GetEngineConfig(ctx context.Context) (*domain.EngineConfig, error)
	SetPaused(ctx context.Context, paused bool) error
	SetFeeBasisPoints(ctx context.Context, bps int64) error
	SetTreasuryAccount(ctx context.Context, account string) error
	// NextTransferID advances the lifetime transfer counter by one and returns
	// the new value. Committed ids are strictly increasing with no gaps.
	NextTransferID(ctx context.Context) (uint64, error)
	NextEventSequence(ctx context.Context) (uint64, error)

	// Transfer history. Records are write-once and never deleted.
	CreateTransferRecord(ctx context.Context, rec *domain.TransferRecord) error
	GetTransferRecord(ctx context.Context, id uint64) (*domain.TransferRecord, error)

	// Trust registry.
	Restrict(ctx context.Context, account string, at time.Time) error
	Unrestrict(ctx context.Context, account string) error
	IsRestricted(ctx context.Context, account string) (bool, error)

	// Velocity records.
	GetVelocityRecord(ctx context.Context, account string) (*domain.VelocityRecord, error)
	PutVelocityRecord(ctx context.Context, rec *domain.VelocityRecord) error

	// Velocity privileges.
	GrantPrivilege(ctx context.Context, account string) error
	HasPrivilege(ctx context.Context, account string) (bool, error)

	// ConsumeNonce marks (account, nonce) used. It returns false, without
	// mutation, if the pair was already consumed. A pair is write-once and is
	// never reset.
	ConsumeNonce(ctx context.Context, account string, nonce uint64) (bool, error)
}
