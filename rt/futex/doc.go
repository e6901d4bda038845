// Package futex implements the futex entries of the dispatch table as a
// parking lot keyed by the address of the watched word.
package futex
