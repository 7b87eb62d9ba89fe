/**
 * @description
 * This file contains the core business logic for the batchpay service. The
 * `Service` struct orchestrates batch value transfers, coordinating between the
 * state repository, the external ledger client, and the message broker.
 *
 * Key features:
 * - Implements the main use case: atomic one-to-many batch transfers with
 *   per-leg fee collection to the treasury account.
 * - Enforces the precondition chain: operational flag, batch shape, batch size,
 *   nonce replay protection, and the per-account velocity ceiling.
 * - Ensures all-or-nothing semantics by running the whole batch inside the
 *   repository's atomic unit and compensating any ledger transfers already
 *   issued when a later leg fails.
 * - Publishes per-leg and batch-committed events to RabbitMQ after commit, so a
 *   failed batch emits nothing.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For event identifiers.
 * - internal/domain, internal/store: For domain models and state access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ToyinB/batchpay/internal/domain"
	"github.com/ToyinB/batchpay/internal/store"
	"github.com/ToyinB/batchpay/pkg/rabbitmq"
)

const (
	// MaxBatchSize caps both the legs per batch and the per-account transfer
	// count inside one velocity window.
	MaxBatchSize = 50

	// MaxMemoLength bounds the optional batch memo, in characters.
	MaxMemoLength = 50
)

// Ledger is the external account system that holds balances and settles
// primitive single transfers. The engine only orchestrates it.
type Ledger interface {
	GetBalance(ctx context.Context, account string) (int64, error)
	Transfer(ctx context.Context, amount int64, from, to string) error
}

// Service provides the core business logic for batch transfers.
type Service struct {
	repo             store.Repository
	ledger           Ledger
	eventProducer    rabbitmq.Publisher
	adminAccount     string
	custodialAccount string
	minTransfer      int64
	velocityWindow   time.Duration

	submissionLimiter SubmissionLimiter

	now func() time.Time
}

// NewService creates a new batch transfer service instance.
func NewService(repo store.Repository, ledger Ledger, producer rabbitmq.Publisher, adminAccount, custodialAccount string, minTransfer int64, velocityWindow time.Duration) *Service {
	if minTransfer < 1 {
		minTransfer = 1
	}
	if velocityWindow <= 0 {
		velocityWindow = 24 * time.Hour
	}
	return &Service{
		repo:             repo,
		ledger:           ledger,
		eventProducer:    producer,
		adminAccount:     adminAccount,
		custodialAccount: custodialAccount,
		minTransfer:      minTransfer,
		velocityWindow:   velocityWindow,
		now:              time.Now,
	}
}

// SetSubmissionLimiter installs the optional distributed edge limiter that
// throttles how often a caller may submit batches, independent of the core
// velocity ceiling.
func (s *Service) SetSubmissionLimiter(limiter SubmissionLimiter) {
	s.submissionLimiter = limiter
}

// executedLeg tracks a ledger movement already issued during the current
// batch, so it can be compensated if a later step fails.
type executedLeg struct {
	amount int64
	from   string
	to     string
}

// ExecuteBatch validates and settles a batch of transfer legs as one atomic
// unit. On success it returns the immutable transfer record keyed by the new
// lifetime transfer id. On any failure the engine state is observably
// identical to before the call.
func (s *Service) ExecuteBatch(ctx context.Context, initiator string, req domain.BatchRequest) (*domain.TransferRecord, error) {
	if err := s.throttleSubmission(ctx, initiator); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		record    *domain.TransferRecord
		legEvents []domain.TransferLegEvent
		executed  []executedLeg
	)

	err := s.repo.RunAtomic(ctx, func(repo store.Repository) error {
		cfg, err := repo.GetEngineConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load engine config: %w", err)
		}

		// Precondition chain; the first failure aborts the whole batch.
		if cfg.Paused {
			return ErrTransfersPaused
		}
		if len(req.Recipients) == 0 || len(req.Recipients) != len(req.Amounts) {
			return ErrMalformedBatch
		}
		if len(req.Recipients) > MaxBatchSize {
			return ErrBatchTooLarge
		}

		consumed, err := repo.ConsumeNonce(ctx, initiator, req.Nonce)
		if err != nil {
			return fmt.Errorf("failed to consume nonce: %w", err)
		}
		if !consumed {
			return ErrDuplicateTransaction
		}

		var grossTotal int64
		for _, amount := range req.Amounts {
			grossTotal += amount
		}

		privileged, err := repo.HasPrivilege(ctx, initiator)
		if err != nil {
			return fmt.Errorf("failed to check privilege: %w", err)
		}
		if !privileged {
			rec, err := repo.GetVelocityRecord(ctx, initiator)
			if err != nil && !errors.Is(err, store.ErrVelocityRecordNotFound) {
				return fmt.Errorf("failed to load velocity record: %w", err)
			}
			updated, allowed := checkAndAdvance(rec, initiator, len(req.Recipients), grossTotal, now, MaxBatchSize, s.velocityWindow)
			if !allowed {
				return ErrRateLimitExceeded
			}
			if err := repo.PutVelocityRecord(ctx, updated); err != nil {
				return fmt.Errorf("failed to store velocity record: %w", err)
			}
		}

		var feeTotal int64
		for i := range req.Recipients {
			recipient := req.Recipients[i]
			amount := req.Amounts[i]

			if amount < s.minTransfer {
				return fmt.Errorf("leg %d: %w", i, ErrInvalidAmount)
			}
			restricted, err := repo.IsRestricted(ctx, recipient)
			if err != nil {
				return fmt.Errorf("leg %d: failed to check restriction: %w", i, err)
			}
			if restricted {
				return fmt.Errorf("leg %d: %w", i, ErrRecipientRestricted)
			}

			balance, err := s.ledger.GetBalance(ctx, initiator)
			if err != nil {
				return fmt.Errorf("leg %d: failed to query balance: %w", i, err)
			}
			if balance < amount {
				return fmt.Errorf("leg %d: %w", i, ErrInsufficientBalance)
			}

			fee := computeFee(amount, cfg.FeeBasisPoints)
			net := amount - fee

			if err := s.ledger.Transfer(ctx, net, initiator, recipient); err != nil {
				log.Printf("level=warn component=app op=execute_batch outcome=leg_failed initiator=%s recipient=%s net=%d err=%v", initiator, recipient, net, err)
				return fmt.Errorf("leg %d: %w", i, ErrTransferExecutionFailed)
			}
			executed = append(executed, executedLeg{amount: net, from: initiator, to: recipient})

			if fee > 0 {
				if err := s.ledger.Transfer(ctx, fee, initiator, cfg.TreasuryAccount); err != nil {
					log.Printf("level=warn component=app op=execute_batch outcome=fee_leg_failed initiator=%s treasury=%s fee=%d err=%v", initiator, cfg.TreasuryAccount, fee, err)
					return fmt.Errorf("leg %d: fee transfer: %w", i, ErrTransferExecutionFailed)
				}
				executed = append(executed, executedLeg{amount: fee, from: initiator, to: cfg.TreasuryAccount})
			}
			feeTotal += fee

			seq, err := repo.NextEventSequence(ctx)
			if err != nil {
				return fmt.Errorf("leg %d: failed to advance event sequence: %w", i, err)
			}
			legEvents = append(legEvents, domain.TransferLegEvent{
				EventID:   uuid.New(),
				Sequence:  seq,
				Initiator: initiator,
				Recipient: recipient,
				NetAmount: net,
				Memo:      req.Memo,
				Timestamp: now,
			})
		}

		id, err := repo.NextTransferID(ctx)
		if err != nil {
			return fmt.Errorf("failed to advance transfer counter: %w", err)
		}
		record = &domain.TransferRecord{
			ID:          id,
			Initiator:   initiator,
			Timestamp:   now,
			TotalAmount: grossTotal,
			Status:      "completed",
			Memo:        req.Memo,
			TotalFee:    feeTotal,
		}
		if err := repo.CreateTransferRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to write transfer record: %w", err)
		}
		return nil
	})
	if err != nil {
		// The repository side rolled back with the unit of work; any ledger
		// movements already settled, including on a commit failure, are
		// compensated here.
		s.reverseExecuted(ctx, executed)
		return nil, err
	}

	log.Printf("level=info component=app op=execute_batch outcome=committed transfer_id=%d initiator=%s legs=%d gross=%d fee=%d", record.ID, initiator, len(req.Recipients), record.TotalAmount, record.TotalFee)
	s.publishBatchEvents(ctx, record, legEvents)
	return record, nil
}

// reverseExecuted issues compensating transfers, in reverse order, for ledger
// movements already settled during a failing batch. The repository side rolls
// back through RunAtomic; the ledger side has no such boundary, so reversal is
// the engine's obligation. A reversal failure leaves real funds stranded and
// is logged CRITICAL for operator intervention.
func (s *Service) reverseExecuted(ctx context.Context, executed []executedLeg) {
	for i := len(executed) - 1; i >= 0; i-- {
		leg := executed[i]
		if err := s.ledger.Transfer(ctx, leg.amount, leg.to, leg.from); err != nil {
			log.Printf("CRITICAL: failed to reverse ledger transfer of %d from %s back to %s: %v", leg.amount, leg.to, leg.from, err)
		}
	}
}

// publishBatchEvents emits the buffered per-leg events and the batch-committed
// event. Publication happens only after commit, so failed batches are
// externally silent; a broker failure never fails a committed batch.
func (s *Service) publishBatchEvents(ctx context.Context, record *domain.TransferRecord, legEvents []domain.TransferLegEvent) {
	if s.eventProducer == nil {
		return
	}
	for _, event := range legEvents {
		if err := s.eventProducer.PublishTransferLegEvent(ctx, event); err != nil {
			log.Printf("level=warn component=app op=publish_events msg=\"leg event publish failed\" transfer_id=%d sequence=%d err=%v", record.ID, event.Sequence, err)
		}
	}
	committed := domain.BatchCommittedEvent{
		EventID:     uuid.New(),
		TransferID:  record.ID,
		Initiator:   record.Initiator,
		GrossAmount: record.TotalAmount,
		FeeAmount:   record.TotalFee,
		LegCount:    len(legEvents),
		Timestamp:   record.Timestamp,
	}
	if err := s.eventProducer.PublishBatchCommittedEvent(ctx, committed); err != nil {
		log.Printf("level=warn component=app op=publish_events msg=\"batch committed event publish failed\" transfer_id=%d err=%v", record.ID, err)
	}
}

// throttleSubmission consults the optional distributed submission limiter.
func (s *Service) throttleSubmission(ctx context.Context, initiator string) error {
	if s.submissionLimiter == nil {
		return nil
	}
	decision, err := s.submissionLimiter.ConsumeSubmission(ctx, initiator)
	if err != nil {
		// Limiter outages must not block settlement.
		log.Printf("level=warn component=app op=throttle_submission msg=\"submission limiter unavailable\" initiator=%s err=%v", initiator, err)
		return nil
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: retry after %ds", ErrSubmissionThrottled, int(decision.RetryAfter/time.Second))
	}
	return nil
}

// GetTransferRecord returns the immutable history entry for a transfer id.
func (s *Service) GetTransferRecord(ctx context.Context, id uint64) (*domain.TransferRecord, error) {
	return s.repo.GetTransferRecord(ctx, id)
}

// GetStatus reports the operational flag and the lifetime transfer count.
func (s *Service) GetStatus(ctx context.Context) (*domain.EngineStatus, error) {
	cfg, err := s.repo.GetEngineConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.EngineStatus{
		Operational:           !cfg.Paused,
		LifetimeTransferCount: cfg.LifetimeTransferCount,
	}, nil
}

// IsRestricted reports whether an account may receive transfers. Read access
// is open to any caller.
func (s *Service) IsRestricted(ctx context.Context, account string) (bool, error) {
	return s.repo.IsRestricted(ctx, account)
}

// GetVelocityRecord returns an account's current window counters.
func (s *Service) GetVelocityRecord(ctx context.Context, account string) (*domain.VelocityRecord, error) {
	return s.repo.GetVelocityRecord(ctx, account)
}
