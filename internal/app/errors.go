package app

import "errors"

// Error taxonomy for batch execution and administration. Every failure is
// reported synchronously as one of these values (possibly wrapped with leg or
// operation context); none are swallowed, and there are no automatic retries.
// Callers resubmit with a fresh nonce after any failure.
var (
	ErrUnauthorized            = errors.New("caller is not the administrative account")
	ErrInvalidAmount           = errors.New("amount is below the minimum transfer threshold")
	ErrTransferExecutionFailed = errors.New("ledger transfer execution failed")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrRecipientRestricted     = errors.New("recipient is restricted")
	ErrBatchTooLarge           = errors.New("batch exceeds the maximum leg count")
	ErrRateLimitExceeded       = errors.New("transfer velocity limit exceeded")
	ErrTransfersPaused         = errors.New("transfers are paused")
	ErrInvalidMemoLength       = errors.New("memo exceeds the maximum length")
	ErrDuplicateTransaction    = errors.New("nonce already consumed")
	ErrRecoveryFailed          = errors.New("foreign asset recovery failed")
	ErrInvalidFeeRate          = errors.New("fee rate exceeds the maximum basis points")
	ErrMalformedBatch          = errors.New("recipient and amount lists do not match")

	// ErrSubmissionThrottled is the edge-level submission limiter's signal.
	// It is distinct from ErrRateLimitExceeded, which is the core velocity
	// ceiling inside the batch window.
	ErrSubmissionThrottled = errors.New("too many batch submissions")
)
