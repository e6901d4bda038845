// Package errors provides structured error types for the runtime bridge.
//
// Errors are categorized by Phase (which layer raised them) and Kind (error
// category). Every Kind maps onto a numeric Code, the value that crosses the
// dispatch table boundary.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseFS, errors.KindNotFound).
//		Path("etc", "motd").
//		Detail("open").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadHandle(errors.PhaseDescriptor, fd)
//	err := errors.VersionMismatch(1, 2)
//
// Phase-less sentinels match an error of the same kind from any layer:
//
//	if errors.Is(err, errors.ErrBadHandle) { ... }
//
// CodeOf and Negative translate any error into its ABI code.
package errors
