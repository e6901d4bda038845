// Package vdso contains the install routine that populates the dispatch
// table.
//
// The loader constructs the runtime providers, registers them with
// SetBoot, stores EntryAddress in the table's tamper-check slot and then
// calls Entry with the ABI version it was built against. Entry checks
// both values and publishes the bound slots in one step; every failure
// is fatal.
package vdso
