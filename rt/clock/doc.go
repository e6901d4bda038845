// Package clock implements the time entries of the dispatch table.
//
// Time is measured in ticks since process boot. The tick rate is fixed
// at construction and reported through TicksPerSecond; conversions to
// and from nanoseconds use 128-bit intermediates and saturate instead of
// wrapping.
package clock
