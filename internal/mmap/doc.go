// Package mmap provides the backing store for system memory regions:
// anonymous private mappings on unix, heap slices elsewhere.
package mmap
