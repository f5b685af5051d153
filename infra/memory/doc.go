// Package memory provides the preallocated hot-path primitives the
// engine and its pumps share: a single-producer single-consumer ring
// for lock-free handoff between pinned goroutines, and a fixed-capacity
// object pool for zero-allocation order reuse.
//
// Both structures allocate all of their storage up front. Nothing in
// this package touches the heap after construction.
package memory
