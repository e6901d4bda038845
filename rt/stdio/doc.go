// Package stdio provides the standard stream descriptors installed at
// handles 0, 1 and 2 during bootstrap.
package stdio
