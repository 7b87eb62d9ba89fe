package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferLegEvent is emitted once per settled leg of a committed batch.
// Sequence numbers come from the engine's global event counter.
type TransferLegEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	Sequence  uint64    `json:"sequence"`
	Initiator string    `json:"initiator"`
	Recipient string    `json:"recipient"`
	NetAmount int64     `json:"net_amount"`
	Memo      *string   `json:"memo,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchCommittedEvent is emitted once per committed batch, after the
// transfer record has been written.
type BatchCommittedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	TransferID  uint64    `json:"transfer_id"`
	Initiator   string    `json:"initiator"`
	GrossAmount int64     `json:"gross_amount"`
	FeeAmount   int64     `json:"fee_amount"`
	LegCount    int       `json:"leg_count"`
	Timestamp   time.Time `json:"timestamp"`
}
