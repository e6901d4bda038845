package clock

import (
	"math"
	"math/bits"
	"time"
)

// DefaultTicksPerSecond is the tick rate used when none is configured.
const DefaultTicksPerSecond uint64 = 1_000_000_000

// Clock is a monotonic tick source anchored at process boot.
type Clock struct {
	boot           time.Time
	ticksPerSecond uint64
}

// New creates a clock ticking ticksPerSecond times a second, starting at
// zero now. A zero rate selects DefaultTicksPerSecond.
func New(ticksPerSecond uint64) *Clock {
	if ticksPerSecond == 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	return &Clock{
		boot:           time.Now(),
		ticksPerSecond: ticksPerSecond,
	}
}

// Now returns the ticks elapsed since boot.
func (c *Clock) Now() uint64 {
	return c.NanosToTicks(uint64(time.Since(c.boot).Nanoseconds()))
}

// TicksPerSecond returns the tick rate.
func (c *Clock) TicksPerSecond() uint64 {
	return c.ticksPerSecond
}

// TicksToNanos converts a tick count to nanoseconds, saturating on
// overflow.
func (c *Clock) TicksToNanos(ticks uint64) uint64 {
	return mulDiv(ticks, uint64(time.Second), c.ticksPerSecond)
}

// NanosToTicks converts nanoseconds to a tick count, saturating on
// overflow.
func (c *Clock) NanosToTicks(nanos uint64) uint64 {
	return mulDiv(nanos, c.ticksPerSecond, uint64(time.Second))
}

// AbsTicksToNanos converts a tick timestamp to nanoseconds since the
// Unix epoch.
func (c *Clock) AbsTicksToNanos(ticks uint64) uint64 {
	base := uint64(c.boot.UnixNano())
	sum, carry := bits.Add64(base, c.TicksToNanos(ticks), 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// Deadline converts a tick timestamp to a wall-clock instant usable
// with timers.
func (c *Clock) Deadline(ticks uint64) time.Time {
	nanos := c.TicksToNanos(ticks)
	if nanos > math.MaxInt64 {
		return c.boot.Add(time.Duration(math.MaxInt64))
	}
	return c.boot.Add(time.Duration(nanos))
}

// mulDiv computes a*b/d with a 128-bit intermediate.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}
