/**
 * @description
 * This file provides an in-memory implementation of the `Repository` interface.
 * It backs the engine in tests and in single-node deployments that do not need
 * durable history, and it reproduces the run-to-completion storage semantics the
 * engine was designed against: operations are serialized by a single mutex and
 * `RunAtomic` restores a full state snapshot when the unit of work fails.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/ToyinB/batchpay/internal/domain"
)

type nonceKey struct {
	account string
	nonce   uint64
}

type memoryState struct {
	config    domain.EngineConfig
	records   map[uint64]domain.TransferRecord
	restricts map[string]domain.RestrictionEntry
	velocity  map[string]domain.VelocityRecord
	privilege map[string]bool
	nonces    map[nonceKey]bool
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		config:    s.config,
		records:   make(map[uint64]domain.TransferRecord, len(s.records)),
		restricts: make(map[string]domain.RestrictionEntry, len(s.restricts)),
		velocity:  make(map[string]domain.VelocityRecord, len(s.velocity)),
		privilege: make(map[string]bool, len(s.privilege)),
		nonces:    make(map[nonceKey]bool, len(s.nonces)),
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.restricts {
		c.restricts[k] = v
	}
	for k, v := range s.velocity {
		c.velocity[k] = v
	}
	for k, v := range s.privilege {
		c.privilege[k] = v
	}
	for k, v := range s.nonces {
		c.nonces[k] = v
	}
	return c
}

// MemoryRepository is an in-memory, mutex-serialized Repository.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memoryState
	// inTx suppresses locking for the repository view handed to a RunAtomic
	// callback; the outer call already holds the mutex.
	inTx bool
}

// NewMemoryRepository creates an empty in-memory repository seeded with the
// given initial configuration.
func NewMemoryRepository(cfg domain.EngineConfig) *MemoryRepository {
	return &MemoryRepository{
		state: &memoryState{
			config:    cfg,
			records:   make(map[uint64]domain.TransferRecord),
			restricts: make(map[string]domain.RestrictionEntry),
			velocity:  make(map[string]domain.VelocityRecord),
			privilege: make(map[string]bool),
			nonces:    make(map[nonceKey]bool),
		},
	}
}

func (r *MemoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// RunAtomic serializes the unit of work behind the mutex and restores a
// snapshot of the full state if fn fails.
func (r *MemoryRepository) RunAtomic(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	txView := &MemoryRepository{state: r.state, inTx: true}
	if err := fn(txView); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *MemoryRepository) GetEngineConfig(ctx context.Context) (*domain.EngineConfig, error) {
	defer r.lock()()
	cfg := r.state.config
	return &cfg, nil
}

func (r *MemoryRepository) SetPaused(ctx context.Context, paused bool) error {
	defer r.lock()()
	r.state.config.Paused = paused
	return nil
}

func (r *MemoryRepository) SetFeeBasisPoints(ctx context.Context, bps int64) error {
	defer r.lock()()
	r.state.config.FeeBasisPoints = bps
	return nil
}

func (r *MemoryRepository) SetTreasuryAccount(ctx context.Context, account string) error {
	defer r.lock()()
	r.state.config.TreasuryAccount = account
	return nil
}

func (r *MemoryRepository) NextTransferID(ctx context.Context) (uint64, error) {
	defer r.lock()()
	r.state.config.LifetimeTransferCount++
	return r.state.config.LifetimeTransferCount, nil
}

func (r *MemoryRepository) NextEventSequence(ctx context.Context) (uint64, error) {
	defer r.lock()()
	r.state.config.EventSequence++
	return r.state.config.EventSequence, nil
}

func (r *MemoryRepository) CreateTransferRecord(ctx context.Context, rec *domain.TransferRecord) error {
	defer r.lock()()
	r.state.records[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) GetTransferRecord(ctx context.Context, id uint64) (*domain.TransferRecord, error) {
	defer r.lock()()
	rec, ok := r.state.records[id]
	if !ok {
		return nil, ErrTransferRecordNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) Restrict(ctx context.Context, account string, at time.Time) error {
	defer r.lock()()
	if _, ok := r.state.restricts[account]; ok {
		return nil
	}
	r.state.restricts[account] = domain.RestrictionEntry{Account: account, RestrictedAt: at}
	return nil
}

func (r *MemoryRepository) Unrestrict(ctx context.Context, account string) error {
	defer r.lock()()
	delete(r.state.restricts, account)
	return nil
}

func (r *MemoryRepository) IsRestricted(ctx context.Context, account string) (bool, error) {
	defer r.lock()()
	_, ok := r.state.restricts[account]
	return ok, nil
}

func (r *MemoryRepository) GetVelocityRecord(ctx context.Context, account string) (*domain.VelocityRecord, error) {
	defer r.lock()()
	rec, ok := r.state.velocity[account]
	if !ok {
		return nil, ErrVelocityRecordNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) PutVelocityRecord(ctx context.Context, rec *domain.VelocityRecord) error {
	defer r.lock()()
	r.state.velocity[rec.Account] = *rec
	return nil
}

func (r *MemoryRepository) GrantPrivilege(ctx context.Context, account string) error {
	defer r.lock()()
	r.state.privilege[account] = true
	return nil
}

func (r *MemoryRepository) HasPrivilege(ctx context.Context, account string) (bool, error) {
	defer r.lock()()
	return r.state.privilege[account], nil
}

func (r *MemoryRepository) ConsumeNonce(ctx context.Context, account string, nonce uint64) (bool, error) {
	defer r.lock()()
	key := nonceKey{account: account, nonce: nonce}
	if r.state.nonces[key] {
		return false, nil
	}
	r.state.nonces[key] = true
	return true, nil
}
