/**
 * @description
 * This file defines the core domain models for the batchpay service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, storage, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the ledger's smallest
 *   unit, which avoids floating-point inaccuracies with financial data.
 * - Transfer records are keyed by a monotonically increasing uint64 id taken from
 *   the engine's lifetime transfer counter, never by a random identifier, so the
 *   sequence of committed batches is gapless and auditable.
 */

package domain

import "time"

// TransferRecord is the immutable history entry written once per committed batch.
// It maps directly to the `transfer_records` table.
type TransferRecord struct {
	ID          uint64    `json:"id"`
	Initiator   string    `json:"initiator"`
	Timestamp   time.Time `json:"timestamp"`
	TotalAmount int64     `json:"total_amount"` // gross, as submitted (pre-fee)
	Status      string    `json:"status"`       // e.g. 'completed'
	Memo        *string   `json:"memo,omitempty"`
	TotalFee    int64     `json:"total_fee"`
}

// BatchRequest is the DTO for an incoming batch transfer submission.
// Recipients and Amounts are parallel lists; entry i forms one transfer leg.
type BatchRequest struct {
	Recipients []string `json:"recipients"`
	Amounts    []int64  `json:"amounts"` // smallest unit
	Memo       *string  `json:"memo,omitempty"`
	Nonce      uint64   `json:"nonce"`
}

// RestrictionEntry marks an account that may not receive transfers.
type RestrictionEntry struct {
	Account      string    `json:"account"`
	RestrictedAt time.Time `json:"restricted_at"`
}

// VelocityRecord tracks an account's transfer activity inside the current
// rolling window. It is overwritten on window reset and never deleted.
type VelocityRecord struct {
	Account      string    `json:"account"`
	LastActivity time.Time `json:"last_activity"`
	WindowCount  int       `json:"window_count"`
	WindowAmount int64     `json:"window_amount"` // tracked, not enforced
}

// PrivilegeEntry grants an account exemption from velocity limits.
type PrivilegeEntry struct {
	Account   string `json:"account"`
	Unlimited bool   `json:"unlimited"`
}

// EngineConfig is the singleton global configuration row consumed by the
// orchestrator and fee computation. Every mutation is a single assignment
// performed through the administrative controller.
type EngineConfig struct {
	Paused                bool   `json:"paused"`
	FeeBasisPoints        int64  `json:"fee_basis_points"`
	TreasuryAccount       string `json:"treasury_account"`
	LifetimeTransferCount uint64 `json:"lifetime_transfer_count"`
	EventSequence         uint64 `json:"event_sequence"`
}

// EngineStatus is the read-only view returned by the status endpoint.
type EngineStatus struct {
	Operational           bool   `json:"operational"`
	LifetimeTransferCount uint64 `json:"lifetime_transfer_count"`
}
