package klog

import (
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RelayStats counts relay outcomes.
type RelayStats struct {
	Forwarded uint64
	Dropped   uint64
	Repaired  uint64
}

// Relay forwards user-space messages to a sink. Forwarding is best
// effort: messages over the rate limit are dropped and counted, and
// nothing is reported back to the caller.
type Relay struct {
	sink      *Sink
	limiter   *rate.Limiter
	source    string
	forwarded atomic.Uint64
	dropped   atomic.Uint64
	repaired  atomic.Uint64
}

// NewRelay creates a relay attributing messages to source. A limit of
// rate.Inf disables rate limiting.
func NewRelay(sink *Sink, source string, limit rate.Limit, burst int) *Relay {
	if burst <= 0 {
		burst = 1
	}
	return &Relay{
		sink:    sink,
		limiter: rate.NewLimiter(limit, burst),
		source:  source,
	}
}

// Forward relays msg. Invalid UTF-8 sequences are replaced with U+FFFD
// and a single trailing newline is dropped, since the sink terminates
// every line itself.
func (r *Relay) Forward(msg []byte) {
	if !r.limiter.Allow() {
		r.dropped.Add(1)
		return
	}

	text := string(msg)
	if repaired := strings.ToValidUTF8(text, "�"); repaired != text {
		text = repaired
		r.repaired.Add(1)
	}
	text = strings.TrimSuffix(text, "\n")

	r.sink.User(r.source, text)
	r.forwarded.Add(1)
}

// Stats returns the relay counters.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Forwarded: r.forwarded.Load(),
		Dropped:   r.dropped.Load(),
		Repaired:  r.repaired.Load(),
	}
}
