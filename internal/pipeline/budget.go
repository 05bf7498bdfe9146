package pipeline

import "time"

// Budget tracks the wall-clock allowance of one request against a
// monotonic start point. It only ever shrinks; stages consult it before
// starting work they might not be able to finish.
type Budget struct {
	start time.Time
	total time.Duration
	now   func() time.Time
}

// NewBudget starts a budget of total duration. clock may be nil for the
// real clock.
func NewBudget(total time.Duration, clock func() time.Time) *Budget {
	if clock == nil {
		clock = time.Now
	}
	return &Budget{start: clock(), total: total, now: clock}
}

// Elapsed is the time consumed so far.
func (b *Budget) Elapsed() time.Duration {
	return b.now().Sub(b.start)
}

// Remaining is the time left, never negative.
func (b *Budget) Remaining() time.Duration {
	r := b.total - b.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// Exhausted reports whether nothing is left.
func (b *Budget) Exhausted() bool {
	return b.Remaining() == 0
}

// Allows reports whether at least need remains.
func (b *Budget) Allows(need time.Duration) bool {
	return b.Remaining() >= need
}
