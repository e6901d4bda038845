// Package motorrt is the userspace runtime core of a small kernel.
//
// A loader boots every runtime service, installs the standard streams
// and hands a versioned dispatch table to the runtime's install routine.
// From then on every allocation, clock read, futex wait, thread spawn,
// file operation and kernel log line goes through a slot of that table.
//
// # Architecture Overview
//
//	motorrt/
//	├── abi/         Slot layout, typed slot record and the VTable
//	├── errors/      Structured errors and their ABI codes
//	├── posix/       Descriptor table shared by files, dirs and streams
//	├── rt/
//	│   ├── alloc/   Size-classed heap behind the memory slots
//	│   ├── clock/   Tick clock and tick/nanosecond conversions
//	│   ├── futex/   Address-keyed wait queues
//	│   ├── thread/  Thread registry, names, join and exit hooks
//	│   ├── tls/     Thread-local keys with destructors
//	│   ├── fs/      Sandboxed filesystem over os.Root
//	│   └── stdio/   Buffered standard stream descriptors
//	├── klog/        Kernel log sink and rate-limited relay
//	├── vdso/        Install routine binding providers to slots
//	├── guest/       wazero host module exposing slots to wasm guests
//	├── metrics/     Prometheus collectors for descriptors and services
//	├── config/      TOML and environment configuration
//	├── loader/      Boot sequence and shutdown
//	└── cmd/rtctl/   CLI and interactive descriptor shell
//
// # Quick Start
//
//	cfg, err := config.Load("motor.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := loader.Load(cfg, loader.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	s := abi.Get()
//	fd, err := s.FsOpen("/motd", abi.OpenRead)
//
// # Thread Safety
//
// The dispatch table is written once and then read without locks. Every
// provider behind it is safe for concurrent use. Install and Get panic
// on contract violations; all other failures are returned as errors
// carrying an ABI code.
package motorrt
