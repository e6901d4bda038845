// Package fs implements the filesystem entries of the dispatch table.
//
// Every path is resolved inside an os.Root sandbox, so neither ".."
// components nor symlinks can reach outside the configured directory.
// Open files and directory streams live in the descriptor table as the
// File and Dir variants; both embed posix.Unimplemented and override
// only what they support.
//
// OS failures are reported as *errors.Error values whose kind maps to
// an ABI error code, so callers can hand errors.Negative(err) straight
// back across the dispatch table.
package fs
