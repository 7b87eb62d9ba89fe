package app

import (
	"time"

	"github.com/ToyinB/batchpay/internal/domain"
)

// checkAndAdvance applies the velocity window rules to an account's record and
// returns the updated record alongside the decision. `rec` is nil when the
// account has no prior activity.
//
// Rules, in order:
//   - no record: create one with count=requested, cumulative amount zeroed,
//     lastActivity=now; allow.
//   - elapsed window (now - lastActivity > window): treat as a fresh window and
//     reset unconditionally, regardless of how large `requested` is. Crossing
//     the window boundary always succeeds once.
//   - same window: allow iff count+requested <= ceiling; mutate only on allow.
//
// The cumulative amount is accumulated for observability but no ceiling is
// applied to it; only the transfer count is capped.
func checkAndAdvance(rec *domain.VelocityRecord, account string, requested int, amount int64, now time.Time, ceiling int, window time.Duration) (*domain.VelocityRecord, bool) {
	if rec == nil {
		return &domain.VelocityRecord{
			Account:      account,
			LastActivity: now,
			WindowCount:  requested,
			WindowAmount: 0,
		}, true
	}

	if now.Sub(rec.LastActivity) > window {
		return &domain.VelocityRecord{
			Account:      account,
			LastActivity: now,
			WindowCount:  requested,
			WindowAmount: 0,
		}, true
	}

	if rec.WindowCount+requested > ceiling {
		return rec, false
	}

	return &domain.VelocityRecord{
		Account:      account,
		LastActivity: rec.LastActivity,
		WindowCount:  rec.WindowCount + requested,
		WindowAmount: rec.WindowAmount + amount,
	}, true
}
