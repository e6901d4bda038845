package tls

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/rt/thread"
)

func TestStore_PerThreadValues(t *testing.T) {
	reg := thread.NewRegistry()
	s := New(reg)
	key := s.Create(nil)
	ctx := context.Background()

	s.Set(ctx, key, 11)
	assert.Equal(t, uint64(11), s.Get(ctx, key))

	seen := make(chan uint64, 2)
	h, err := reg.Spawn(ctx, func(ctx context.Context) {
		seen <- s.Get(ctx, key)
		s.Set(ctx, key, 22)
		seen <- s.Get(ctx, key)
	})
	require.NoError(t, err)
	require.NoError(t, reg.Join(h))

	assert.Equal(t, uint64(0), <-seen, "new thread starts empty")
	assert.Equal(t, uint64(22), <-seen)
	assert.Equal(t, uint64(11), s.Get(ctx, key), "main value untouched")
}

func TestStore_UnknownKey(t *testing.T) {
	s := New(thread.NewRegistry())
	ctx := context.Background()

	s.Set(ctx, 42, 1)
	assert.Zero(t, s.Get(ctx, 42))
	s.Destroy(42)
}

func TestStore_DestructorsOnExit(t *testing.T) {
	reg := thread.NewRegistry()
	s := New(reg)

	var mu sync.Mutex
	var got []uint64
	key := s.Create(func(v uint64) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
	})
	unset := s.Create(func(uint64) {
		t.Error("destructor ran for a zero value")
	})

	h, err := reg.Spawn(context.Background(), func(ctx context.Context) {
		s.Set(ctx, key, 99)
		s.Set(ctx, unset, 5)
		s.Set(ctx, unset, 0)
	})
	require.NoError(t, err)
	require.NoError(t, reg.Join(h))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{99}, got)
}

func TestStore_DestructorRunsOnce(t *testing.T) {
	reg := thread.NewRegistry()
	s := New(reg)

	var calls atomic.Int32
	var k abi.TLSKey
	k = s.Create(func(v uint64) {
		calls.Add(1)
		s.Set(context.Background(), k, v+1)
	})

	h, err := reg.Spawn(context.Background(), func(ctx context.Context) {
		s.Set(ctx, k, 1)
	})
	require.NoError(t, err)
	require.NoError(t, reg.Join(h))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(2), s.Get(context.Background(), k), "store from a destructor lands on main")

	reg.ExitMain()
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_Destroy(t *testing.T) {
	reg := thread.NewRegistry()
	s := New(reg)
	ctx := context.Background()

	key := s.Create(func(uint64) {
		t.Error("destroyed key ran its destructor")
	})
	s.Set(ctx, key, 3)
	assert.Equal(t, 1, s.Keys())

	s.Destroy(key)
	assert.Zero(t, s.Keys())
	assert.Zero(t, s.Get(ctx, key))

	reg.ExitMain()
}
