// Package loader boots the runtime: it builds the providers from the
// configuration, writes the install routine's address into the dispatch
// table, runs the install routine and places the standard streams at
// handles 0, 1 and 2.
package loader
