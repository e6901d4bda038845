// Package guest binds dispatch table entries into a wazero host module
// so WebAssembly programs can call the runtime.
//
// Every function takes and returns plain integers. Buffers are passed
// as (pointer, length) pairs into the caller's exported memory. Entries
// that produce a value return it as a non-negative i64; failures are
// returned as the negated ABI error code. Status-only entries return 0
// or a negated code as i32.
package guest
