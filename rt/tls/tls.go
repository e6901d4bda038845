package tls

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/rt/thread"
)

// Store holds thread-local values for the threads of one registry.
type Store struct {
	threads *thread.Registry
	dtors   map[abi.TLSKey]func(uint64)
	values  map[*thread.Thread]map[abi.TLSKey]uint64
	next    atomic.Uint64
	mu      sync.RWMutex
}

// New creates a store and hooks it into the exit path of threads.
func New(threads *thread.Registry) *Store {
	s := &Store{
		threads: threads,
		dtors:   make(map[abi.TLSKey]func(uint64)),
		values:  make(map[*thread.Thread]map[abi.TLSKey]uint64),
	}
	threads.OnExit(s.threadExit)
	return s
}

// Create allocates a key. dtor, if non-nil, runs at thread exit for
// every thread holding a non-zero value under the key.
func (s *Store) Create(dtor func(uint64)) abi.TLSKey {
	key := abi.TLSKey(s.next.Add(1))

	s.mu.Lock()
	s.dtors[key] = dtor
	s.mu.Unlock()
	return key
}

// Set stores value for the current thread. Unknown keys are ignored.
func (s *Store) Set(ctx context.Context, key abi.TLSKey, value uint64) {
	t := s.threads.Current(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dtors[key]; !ok {
		return
	}
	vals := s.values[t]
	if vals == nil {
		vals = make(map[abi.TLSKey]uint64)
		s.values[t] = vals
	}
	if value == 0 {
		delete(vals, key)
		return
	}
	vals[key] = value
}

// Get returns the current thread's value, zero if unset or unknown.
func (s *Store) Get(ctx context.Context, key abi.TLSKey) uint64 {
	t := s.threads.Current(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[t][key]
}

// Destroy deletes key and every value stored under it without running
// its destructor.
func (s *Store) Destroy(key abi.TLSKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dtors, key)
	for _, vals := range s.values {
		delete(vals, key)
	}
}

// Keys returns the number of live keys.
func (s *Store) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dtors)
}

// threadExit runs the destructors of t's non-zero values once. The
// values are dropped before any destructor runs; destructors receive no
// thread context, so a Set from a destructor lands on the main thread.
func (s *Store) threadExit(t *thread.Thread) {
	s.mu.Lock()
	vals := s.values[t]
	delete(s.values, t)
	var run []pending
	for key, v := range vals {
		if dtor := s.dtors[key]; dtor != nil && v != 0 {
			run = append(run, pending{dtor: dtor, value: v})
		}
	}
	s.mu.Unlock()

	for _, p := range run {
		p.dtor(p.value)
	}
	if len(run) > 0 {
		Logger().Debug("thread-local destructors ran",
			zap.Uint64("thread", uint64(t.Handle())),
			zap.Int("count", len(run)))
	}
}

type pending struct {
	dtor  func(uint64)
	value uint64
}
