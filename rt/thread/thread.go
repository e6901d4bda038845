package thread

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
)

// MaxNameLen is the longest thread name SetName accepts, in bytes.
const MaxNameLen = 64

// MainHandle is the handle of the thread that created the registry. It
// cannot be joined.
const MainHandle abi.ThreadHandle = 0

type ctxKey struct{}

// Thread is one runtime thread, backed by a goroutine.
type Thread struct {
	err    error
	done   chan struct{}
	name   atomic.Pointer[string]
	handle abi.ThreadHandle

	// Guarded by Registry.mu.
	finished bool
	detached bool
}

// Handle returns the thread's handle.
func (t *Thread) Handle() abi.ThreadHandle {
	return t.handle
}

// Name returns the thread's name, empty until SetName is called.
func (t *Thread) Name() string {
	if p := t.name.Load(); p != nil {
		return *p
	}
	return ""
}

// Done is closed after the thread's exit hooks have run.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// ExitHook runs on the exiting thread after its body returns.
type ExitHook func(*Thread)

// Registry tracks spawned threads until they are joined or detached.
// A thread that is neither stays registered after it finishes.
type Registry struct {
	main    *Thread
	threads map[abi.ThreadHandle]*Thread
	hooks   []ExitHook
	next    atomic.Uint64
	mu      sync.Mutex
	hooksMu sync.RWMutex
}

// NewRegistry creates a registry whose main thread is the caller.
func NewRegistry() *Registry {
	r := &Registry{
		main:    &Thread{handle: MainHandle, done: make(chan struct{})},
		threads: make(map[abi.ThreadHandle]*Thread),
	}
	r.main.name.Store(ptr("main"))
	return r
}

func ptr(s string) *string { return &s }

// Main returns the main thread.
func (r *Registry) Main() *Thread {
	return r.main
}

// WithThread returns a context carrying t as the current thread.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the thread carried by ctx, if any.
func FromContext(ctx context.Context) (*Thread, bool) {
	t, ok := ctx.Value(ctxKey{}).(*Thread)
	return t, ok
}

// Current returns the thread carried by ctx, falling back to the main
// thread.
func (r *Registry) Current(ctx context.Context) *Thread {
	if t, ok := FromContext(ctx); ok {
		return t
	}
	return r.main
}

// OnExit registers a hook run by every thread as it exits.
func (r *Registry) OnExit(h ExitHook) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Spawn starts fn on a new thread. The context passed to fn carries the
// new thread.
func (r *Registry) Spawn(ctx context.Context, fn func(context.Context)) (abi.ThreadHandle, error) {
	if fn == nil {
		return 0, errors.InvalidInput(errors.PhaseThread, "nil thread body")
	}

	t := &Thread{
		handle: abi.ThreadHandle(r.next.Add(1)),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.threads[t.handle] = t
	r.mu.Unlock()

	go r.run(WithThread(ctx, t), t, fn)

	Logger().Debug("thread spawned", zap.Uint64("handle", uint64(t.handle)))
	return t.handle, nil
}

func (r *Registry) run(ctx context.Context, t *Thread, fn func(context.Context)) {
	defer close(t.done)
	defer r.finish(t)
	defer r.exit(t)
	defer func() {
		if v := recover(); v != nil {
			t.err = errors.New(errors.PhaseThread, errors.KindInternal).
				Detail("thread panicked: %v", v).
				Value(t.handle).
				Build()
			Logger().Error("thread panicked",
				zap.Uint64("handle", uint64(t.handle)),
				zap.String("name", t.Name()),
				zap.Any("panic", v))
		}
	}()
	fn(ctx)
}

// exit runs the exit hooks for t. It is also used for the main thread
// on shutdown.
func (r *Registry) exit(t *Thread) {
	r.hooksMu.RLock()
	hooks := make([]ExitHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.hooksMu.RUnlock()

	for _, h := range hooks {
		h(t)
	}
}

// finish marks t finished and forgets it when it was detached.
func (r *Registry) finish(t *Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.finished = true
	if t.detached {
		delete(r.threads, t.handle)
	}
}

// Detach releases the registry's record of h. A finished thread is
// forgotten at once, a running one when it exits. A detached handle can
// no longer be joined.
func (r *Registry) Detach(h abi.ThreadHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[h]
	if !ok || t.detached {
		return errors.BadHandle(errors.PhaseThread, h)
	}
	if t.finished {
		delete(r.threads, h)
		return nil
	}
	t.detached = true
	return nil
}

// ExitMain runs the exit hooks for the main thread.
func (r *Registry) ExitMain() {
	select {
	case <-r.main.done:
		return
	default:
	}
	r.exit(r.main)
	close(r.main.done)
}

// Yield gives other goroutines a chance to run.
func (r *Registry) Yield() {
	runtime.Gosched()
}

// Sleep blocks until deadline or until ctx is done.
func (r *Registry) Sleep(ctx context.Context, deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// SetName names the current thread. Names must be valid UTF-8 and at
// most MaxNameLen bytes.
func (r *Registry) SetName(ctx context.Context, name string) error {
	if len(name) > MaxNameLen {
		return errors.InvalidInput(errors.PhaseThread,
			fmt.Sprintf("thread name is %d bytes, limit %d", len(name), MaxNameLen))
	}
	if !utf8.ValidString(name) {
		return errors.InvalidInput(errors.PhaseThread, "thread name is not valid UTF-8")
	}
	r.Current(ctx).name.Store(&name)
	return nil
}

// Join waits for the thread h to finish and forgets it. A handle can be
// joined once; unknown handles fail with a bad handle error. A thread
// whose body panicked reports an internal error.
func (r *Registry) Join(h abi.ThreadHandle) error {
	r.mu.Lock()
	t, ok := r.threads[h]
	if ok && t.detached {
		ok = false
	}
	if ok {
		delete(r.threads, h)
	}
	r.mu.Unlock()

	if !ok {
		return errors.BadHandle(errors.PhaseThread, h)
	}
	<-t.done
	return t.err
}

// Live returns the number of spawned threads not yet joined or
// forgotten after detaching.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}
