package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ToyinB/batchpay/internal/domain"
	"github.com/ToyinB/batchpay/internal/store"
)

type recordedTransfer struct {
	amount int64
	from   string
	to     string
}

type fakeLedger struct {
	balances  map[string]int64
	transfers []recordedTransfer
	failOn    func(amount int64, from, to string) error
}

func newFakeLedger(balances map[string]int64) *fakeLedger {
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &fakeLedger{balances: balances}
}

func (l *fakeLedger) GetBalance(ctx context.Context, account string) (int64, error) {
	return l.balances[account], nil
}

func (l *fakeLedger) Transfer(ctx context.Context, amount int64, from, to string) error {
	if l.failOn != nil {
		if err := l.failOn(amount, from, to); err != nil {
			return err
		}
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	l.transfers = append(l.transfers, recordedTransfer{amount: amount, from: from, to: to})
	return nil
}

type fakePublisher struct {
	legEvents []domain.TransferLegEvent
	committed []domain.BatchCommittedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *fakePublisher) PublishTransferLegEvent(ctx context.Context, event domain.TransferLegEvent) error {
	p.legEvents = append(p.legEvents, event)
	return nil
}

func (p *fakePublisher) PublishBatchCommittedEvent(ctx context.Context, event domain.BatchCommittedEvent) error {
	p.committed = append(p.committed, event)
	return nil
}

func (p *fakePublisher) Close() {}

type fakeLimiter struct {
	decision ThrottleDecision
	err      error
}

func (f *fakeLimiter) ConsumeSubmission(ctx context.Context, subject string) (ThrottleDecision, error) {
	return f.decision, f.err
}

func newTestService(t *testing.T, cfg domain.EngineConfig, balances map[string]int64) (*Service, *store.MemoryRepository, *fakeLedger, *fakePublisher) {
	t.Helper()
	repo := store.NewMemoryRepository(cfg)
	ledger := newFakeLedger(balances)
	publisher := &fakePublisher{}
	svc := NewService(repo, ledger, publisher, "admin", "custodial", 1, 24*time.Hour)
	return svc, repo, ledger, publisher
}

func TestExecuteBatch_CommitsAndCollectsFees(t *testing.T) {
	svc, _, ledger, publisher := newTestService(t,
		domain.EngineConfig{FeeBasisPoints: 5, TreasuryAccount: "treasury"},
		map[string]int64{"alice": 10000},
	)

	record, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob", "carol", "dave"},
		Amounts:    []int64{100, 200, 300},
		Nonce:      1,
	})
	if err != nil {
		t.Fatalf("ExecuteBatch returned error: %v", err)
	}

	if record.ID != 1 {
		t.Fatalf("expected first transfer id 1, got %d", record.ID)
	}
	if record.TotalAmount != 600 {
		t.Fatalf("expected gross total 600, got %d", record.TotalAmount)
	}
	if record.TotalFee != 2 {
		t.Fatalf("expected total fee 2, got %d", record.TotalFee)
	}
	if record.Status != "completed" {
		t.Fatalf("expected status completed, got %q", record.Status)
	}

	// Recipients receive net amounts; fee rounds down per leg.
	if ledger.balances["bob"] != 100 {
		t.Fatalf("expected bob to receive 100 (no fee below one unit), got %d", ledger.balances["bob"])
	}
	if ledger.balances["carol"] != 199 {
		t.Fatalf("expected carol to receive 199, got %d", ledger.balances["carol"])
	}
	if ledger.balances["dave"] != 299 {
		t.Fatalf("expected dave to receive 299, got %d", ledger.balances["dave"])
	}
	if ledger.balances["treasury"] != 2 {
		t.Fatalf("expected treasury to collect 2, got %d", ledger.balances["treasury"])
	}
	// Value conservation: the initiator is debited exactly the gross total.
	if ledger.balances["alice"] != 9400 {
		t.Fatalf("expected alice debited to 9400, got %d", ledger.balances["alice"])
	}

	if len(publisher.legEvents) != 3 {
		t.Fatalf("expected 3 leg events, got %d", len(publisher.legEvents))
	}
	for i, event := range publisher.legEvents {
		if event.Sequence != uint64(i+1) {
			t.Fatalf("expected leg event sequence %d, got %d", i+1, event.Sequence)
		}
	}
	if len(publisher.committed) != 1 {
		t.Fatalf("expected 1 batch committed event, got %d", len(publisher.committed))
	}
	if publisher.committed[0].LegCount != 3 {
		t.Fatalf("expected committed event leg count 3, got %d", publisher.committed[0].LegCount)
	}
	if publisher.committed[0].GrossAmount != 600 || publisher.committed[0].FeeAmount != 2 {
		t.Fatalf("expected committed event gross=600 fee=2, got gross=%d fee=%d",
			publisher.committed[0].GrossAmount, publisher.committed[0].FeeAmount)
	}
}

func TestExecuteBatch_NonceReplayRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 10000},
	)

	req := domain.BatchRequest{Recipients: []string{"bob"}, Amounts: []int64{100}, Nonce: 7}
	if _, err := svc.ExecuteBatch(context.Background(), "alice", req); err != nil {
		t.Fatalf("first submission returned error: %v", err)
	}
	_, err := svc.ExecuteBatch(context.Background(), "alice", req)
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction on replay, got %v", err)
	}
}

func TestExecuteBatch_RestrictedRecipientAbortsAndReverses(t *testing.T) {
	svc, repo, ledger, publisher := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)
	if err := repo.Restrict(context.Background(), "carol", time.Now()); err != nil {
		t.Fatalf("Restrict returned error: %v", err)
	}

	req := domain.BatchRequest{
		Recipients: []string{"bob", "carol"},
		Amounts:    []int64{200, 200},
		Nonce:      1,
	}
	_, err := svc.ExecuteBatch(context.Background(), "alice", req)
	if !errors.Is(err, ErrRecipientRestricted) {
		t.Fatalf("expected ErrRecipientRestricted, got %v", err)
	}

	// The first leg settled on the ledger before the failure and must be reversed.
	if ledger.balances["alice"] != 1000 {
		t.Fatalf("expected alice restored to 1000, got %d", ledger.balances["alice"])
	}
	if ledger.balances["bob"] != 0 {
		t.Fatalf("expected bob restored to 0, got %d", ledger.balances["bob"])
	}

	// Failed batches leave no history and emit nothing.
	if _, err := repo.GetTransferRecord(context.Background(), 1); !errors.Is(err, store.ErrTransferRecordNotFound) {
		t.Fatalf("expected no transfer record after failed batch, got %v", err)
	}
	if len(publisher.legEvents) != 0 || len(publisher.committed) != 0 {
		t.Fatalf("expected no events after failed batch, got %d leg and %d committed",
			len(publisher.legEvents), len(publisher.committed))
	}

	// The nonce rolls back with the rest of the state, so the same submission
	// succeeds once the restriction is lifted.
	if err := repo.Unrestrict(context.Background(), "carol"); err != nil {
		t.Fatalf("Unrestrict returned error: %v", err)
	}
	if _, err := svc.ExecuteBatch(context.Background(), "alice", req); err != nil {
		t.Fatalf("resubmission after unrestrict returned error: %v", err)
	}
}

func TestExecuteBatch_LedgerFailureRollsBackState(t *testing.T) {
	svc, repo, ledger, publisher := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)
	ledger.failOn = func(amount int64, from, to string) error {
		if to == "carol" {
			return errors.New("ledger unavailable")
		}
		return nil
	}

	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob", "carol"},
		Amounts:    []int64{200, 200},
		Nonce:      1,
	})
	if !errors.Is(err, ErrTransferExecutionFailed) {
		t.Fatalf("expected ErrTransferExecutionFailed, got %v", err)
	}

	if ledger.balances["alice"] != 1000 {
		t.Fatalf("expected alice restored to 1000, got %d", ledger.balances["alice"])
	}
	if ledger.balances["bob"] != 0 {
		t.Fatalf("expected bob restored to 0, got %d", ledger.balances["bob"])
	}
	if _, err := repo.GetVelocityRecord(context.Background(), "alice"); !errors.Is(err, store.ErrVelocityRecordNotFound) {
		t.Fatalf("expected velocity record rolled back, got %v", err)
	}
	if len(publisher.legEvents) != 0 || len(publisher.committed) != 0 {
		t.Fatalf("expected no events after failed batch")
	}
}

func TestExecuteBatch_PausedRejectsSubmissions(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{Paused: true, TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)

	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob"},
		Amounts:    []int64{100},
		Nonce:      1,
	})
	if !errors.Is(err, ErrTransfersPaused) {
		t.Fatalf("expected ErrTransfersPaused, got %v", err)
	}
}

func TestExecuteBatch_MalformedBatchRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)

	tests := []struct {
		name string
		req  domain.BatchRequest
	}{
		{
			name: "empty batch",
			req:  domain.BatchRequest{Nonce: 1},
		},
		{
			name: "mismatched lists",
			req: domain.BatchRequest{
				Recipients: []string{"bob", "carol"},
				Amounts:    []int64{100},
				Nonce:      2,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ExecuteBatch(context.Background(), "alice", tt.req)
			if !errors.Is(err, ErrMalformedBatch) {
				t.Fatalf("expected ErrMalformedBatch, got %v", err)
			}
		})
	}
}

func TestExecuteBatch_OversizedBatchRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000000},
	)

	recipients := make([]string, MaxBatchSize+1)
	amounts := make([]int64, MaxBatchSize+1)
	for i := range recipients {
		recipients[i] = "recipient"
		amounts[i] = 10
	}
	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: recipients,
		Amounts:    amounts,
		Nonce:      1,
	})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestExecuteBatch_VelocityCeilingAcrossBatches(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000000},
	)

	batchOf := func(n int, nonce uint64) domain.BatchRequest {
		recipients := make([]string, n)
		amounts := make([]int64, n)
		for i := range recipients {
			recipients[i] = "recipient"
			amounts[i] = 10
		}
		return domain.BatchRequest{Recipients: recipients, Amounts: amounts, Nonce: nonce}
	}

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.ExecuteBatch(context.Background(), "alice", batchOf(30, 1)); err != nil {
		t.Fatalf("first batch returned error: %v", err)
	}
	_, err := svc.ExecuteBatch(context.Background(), "alice", batchOf(30, 2))
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded inside the window, got %v", err)
	}

	// Once the window elapses the counter resets and submissions resume.
	svc.now = func() time.Time { return base.Add(25 * time.Hour) }
	if _, err := svc.ExecuteBatch(context.Background(), "alice", batchOf(30, 3)); err != nil {
		t.Fatalf("batch after window elapsed returned error: %v", err)
	}
}

func TestExecuteBatch_PrivilegedAccountBypassesVelocity(t *testing.T) {
	svc, repo, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000000},
	)
	if err := repo.GrantPrivilege(context.Background(), "alice"); err != nil {
		t.Fatalf("GrantPrivilege returned error: %v", err)
	}

	for nonce := uint64(1); nonce <= 3; nonce++ {
		recipients := make([]string, MaxBatchSize)
		amounts := make([]int64, MaxBatchSize)
		for i := range recipients {
			recipients[i] = "recipient"
			amounts[i] = 10
		}
		if _, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
			Recipients: recipients,
			Amounts:    amounts,
			Nonce:      nonce,
		}); err != nil {
			t.Fatalf("privileged batch %d returned error: %v", nonce, err)
		}
	}
}

func TestExecuteBatch_BelowMinimumAmountRejected(t *testing.T) {
	repo := store.NewMemoryRepository(domain.EngineConfig{TreasuryAccount: "treasury"})
	ledger := newFakeLedger(map[string]int64{"alice": 1000})
	svc := NewService(repo, ledger, &fakePublisher{}, "admin", "custodial", 10, 24*time.Hour)

	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob"},
		Amounts:    []int64{5},
		Nonce:      1,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestExecuteBatch_InsufficientBalanceRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 50},
	)

	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob"},
		Amounts:    []int64{100},
		Nonce:      1,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestExecuteBatch_SubmissionThrottled(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)
	svc.SetSubmissionLimiter(&fakeLimiter{decision: ThrottleDecision{Count: 31, RetryAfter: 12 * time.Second}})

	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob"},
		Amounts:    []int64{100},
		Nonce:      1,
	})
	if !errors.Is(err, ErrSubmissionThrottled) {
		t.Fatalf("expected ErrSubmissionThrottled, got %v", err)
	}
}

func TestExecuteBatch_LimiterOutageDoesNotBlockSettlement(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)
	svc.SetSubmissionLimiter(&fakeLimiter{err: errors.New("redis down")})

	if _, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob"},
		Amounts:    []int64{100},
		Nonce:      1,
	}); err != nil {
		t.Fatalf("expected settlement to proceed on limiter outage, got %v", err)
	}
}

func TestGetStatus_ReportsOperationalAndLifetimeCount(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)

	for nonce := uint64(1); nonce <= 2; nonce++ {
		if _, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
			Recipients: []string{"bob"},
			Amounts:    []int64{100},
			Nonce:      nonce,
		}); err != nil {
			t.Fatalf("batch %d returned error: %v", nonce, err)
		}
	}

	status, err := svc.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if !status.Operational {
		t.Fatalf("expected operational status")
	}
	if status.LifetimeTransferCount != 2 {
		t.Fatalf("expected lifetime transfer count 2, got %d", status.LifetimeTransferCount)
	}
}

// commitFailingRepository runs the unit of work against the underlying
// repository but reports a failure at the commit boundary, after the callback
// has already succeeded. The underlying repository discards the mutations,
// mirroring a database rollback on a failed commit.
type commitFailingRepository struct {
	*store.MemoryRepository
	commitErr error
}

func (r *commitFailingRepository) RunAtomic(ctx context.Context, fn func(store.Repository) error) error {
	err := r.MemoryRepository.RunAtomic(ctx, func(tx store.Repository) error {
		if err := fn(tx); err != nil {
			return err
		}
		return r.commitErr
	})
	return err
}

func TestExecuteBatch_CommitFailureReversesLedgerMovements(t *testing.T) {
	commitErr := errors.New("connection reset during commit")
	repo := &commitFailingRepository{
		MemoryRepository: store.NewMemoryRepository(domain.EngineConfig{FeeBasisPoints: 5, TreasuryAccount: "treasury"}),
		commitErr:        commitErr,
	}
	ledger := newFakeLedger(map[string]int64{"alice": 10000})
	publisher := &fakePublisher{}
	svc := NewService(repo, ledger, publisher, "admin", "custodial", 1, 24*time.Hour)

	_, err := svc.ExecuteBatch(context.Background(), "alice", domain.BatchRequest{
		Recipients: []string{"bob", "carol"},
		Amounts:    []int64{1000, 1000},
		Nonce:      1,
	})
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}

	// Every ledger movement settled before the failed commit is compensated.
	for account, want := range map[string]int64{"alice": 10000, "bob": 0, "carol": 0, "treasury": 0} {
		if got := ledger.balances[account]; got != want {
			t.Fatalf("expected %s balance %d after compensation, got %d", account, want, got)
		}
	}

	if _, err := repo.GetTransferRecord(context.Background(), 1); !errors.Is(err, store.ErrTransferRecordNotFound) {
		t.Fatalf("expected no transfer record after rollback, got %v", err)
	}
	if len(publisher.legEvents) != 0 || len(publisher.committed) != 0 {
		t.Fatalf("expected no events for a failed batch, got %d leg and %d batch events",
			len(publisher.legEvents), len(publisher.committed))
	}
}
