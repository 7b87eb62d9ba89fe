package app

// MaxFeeBasisPoints caps the configurable fee rate. The fee denominator in
// this engine is 1000, not the conventional 10000, so 1000 bps is 100%.
const MaxFeeBasisPoints = 1000

// computeFee returns floor(amount * basisPoints / 1000) for one transfer leg.
// Fees are computed per leg, never on the batch total; the batch fee is the
// sum of the per-leg results. The split computation keeps every intermediate
// product within int64 for any non-negative amount and rate up to
// MaxFeeBasisPoints, where the naive product would overflow above ~9.2e15.
func computeFee(amount, basisPoints int64) int64 {
	whole, part := amount/1000, amount%1000
	return whole*basisPoints + part*basisPoints/1000
}
