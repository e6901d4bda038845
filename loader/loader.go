package loader

import (
	stderrors "errors"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/config"
	"github.com/wippyai/motor-rt/errors"
	"github.com/wippyai/motor-rt/guest"
	"github.com/wippyai/motor-rt/klog"
	"github.com/wippyai/motor-rt/metrics"
	"github.com/wippyai/motor-rt/posix"
	"github.com/wippyai/motor-rt/rt/alloc"
	"github.com/wippyai/motor-rt/rt/clock"
	"github.com/wippyai/motor-rt/rt/fs"
	"github.com/wippyai/motor-rt/rt/futex"
	"github.com/wippyai/motor-rt/rt/stdio"
	"github.com/wippyai/motor-rt/rt/thread"
	"github.com/wippyai/motor-rt/rt/tls"
	"github.com/wippyai/motor-rt/vdso"
)

// Options overrides the process-wide defaults Load uses. The zero value
// boots the process table with the process's own standard streams.
type Options struct {
	// Table receives the slots. Nil selects abi.Process(), which is
	// populated through vdso.Entry.
	Table *abi.VTable

	// Descriptors backs the fs and posix slots. Nil selects
	// posix.Descriptors().
	Descriptors *posix.Table

	// Streams are installed at handles 0-2. Nil selects the process's
	// own standard files.
	Streams *stdio.Streams

	// Console receives kernel log lines. Nil selects the configured
	// klog console.
	Console io.Writer

	// Metrics, when set, observes the descriptor table, relay, heap and
	// threads.
	Metrics *metrics.Metrics
}

// Runtime is a booted dispatch table together with its providers.
type Runtime struct {
	Config  *config.Config
	Boot    *vdso.Boot
	Table   *abi.VTable
	Sink    *klog.Sink
	Streams stdio.Streams

	console io.Closer
}

// Load constructs every provider from cfg, installs the standard
// streams and runs the install routine. Contract violations during
// install panic; construction failures are returned.
func Load(cfg *config.Config, opts Options) (*Runtime, error) {
	descriptors := opts.Descriptors
	if descriptors == nil {
		descriptors = posix.Descriptors()
	}
	vt := opts.Table
	if vt == nil {
		vt = abi.Process()
	}

	if opts.Metrics != nil {
		descriptors.Subscribe(opts.Metrics)
	}

	streams := stdio.Process(cfg.Runtime.StdoutBuffer)
	if opts.Streams != nil {
		streams = *opts.Streams
	}
	if err := streams.Install(descriptors); err != nil {
		return nil, err
	}

	fsys, err := fs.New(cfg.FS.Root, descriptors)
	if err != nil {
		_ = descriptors.Clear()
		return nil, err
	}

	console, closer, err := openConsole(cfg.Klog.Console, opts.Console)
	if err != nil {
		_ = descriptors.Clear()
		_ = fsys.Shutdown()
		return nil, err
	}
	sink := klog.NewSink(console, cfg.KlogLevel())
	relay := klog.NewRelay(sink, cfg.Runtime.Name, cfg.KlogLimit(), cfg.Klog.Burst)

	threads := thread.NewRegistry()
	boot := &vdso.Boot{
		Heap:        alloc.New(),
		Clock:       clock.New(cfg.Runtime.TicksPerSecond),
		Futex:       futex.New(),
		Threads:     threads,
		TLS:         tls.New(threads),
		FS:          fsys,
		Descriptors: descriptors,
		Relay:       relay,
	}

	if m := opts.Metrics; m != nil {
		m.WatchRelay(relay)
		m.WatchHeap(boot.Heap)
		m.WatchThreads(threads)
	}

	vt.SetEntry(vdso.EntryAddress())
	if vt == abi.Process() {
		vdso.SetBoot(boot)
		vdso.Entry(abi.Version)
	} else {
		vdso.Install(vt, abi.Version, boot)
	}

	sink.Log(zap.InfoLevel, "loader", "dispatch table installed")
	Logger().Info("runtime loaded",
		zap.String("name", cfg.Runtime.Name),
		zap.String("root", fsys.Root()),
		zap.Uint64("ticks_per_second", boot.Clock.TicksPerSecond()))

	return &Runtime{
		Config:  cfg,
		Boot:    boot,
		Table:   vt,
		Sink:    sink,
		Streams: streams,
		console: closer,
	}, nil
}

func openConsole(name string, override io.Writer) (io.Writer, io.Closer, error) {
	if override != nil {
		return override, nil, nil
	}
	switch name {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "open klog console "+name)
	}
	return f, f, nil
}

// Slots returns the installed slot record.
func (r *Runtime) Slots() *abi.Slots {
	return r.Table.Get()
}

// Host returns a wasm host bound to the runtime's table.
func (r *Runtime) Host() *guest.Host {
	return guest.NewHost(r.Table)
}

// Shutdown runs main-thread exit hooks, closes every descriptor, and
// releases the sandbox and console. All failures are joined.
func (r *Runtime) Shutdown() error {
	var errs []error

	if err := r.Streams.Out.Flush(); err != nil {
		errs = append(errs, err)
	}
	r.Boot.Threads.ExitMain()
	if err := r.Boot.Descriptors.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Boot.FS.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	_ = r.Sink.Sync()
	if r.console != nil {
		if err := r.console.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	Logger().Debug("runtime shut down", zap.Int("errors", len(errs)))
	return stderrors.Join(errs...)
}
