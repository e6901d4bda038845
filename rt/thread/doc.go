// Package thread implements the thread entries of the dispatch table.
//
// Threads are goroutines tracked by a Registry. The running thread is
// carried in the context.Context handed to its body, and code without a
// thread in its context acts on behalf of the main thread. Exit hooks
// let other subsystems, such as thread-local storage, clean up per
// thread state when a thread ends.
package thread
