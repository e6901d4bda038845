// Package tls implements the thread-local storage entries of the
// dispatch table on top of the thread registry.
package tls
