// Package klog is the kernel-side log sink behind the log-relay entry of
// the dispatch table.
//
// A Sink serializes records onto a single console writer in a fixed
// uptime-prefixed format. A Relay sits in front of it for user-space
// messages: it repairs invalid UTF-8, applies a rate limit and never
// fails from the caller's point of view.
package klog
