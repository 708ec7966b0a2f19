// Package kv defines the ordered key-value store contract the indexing engine
// builds on, plus a badger-backed implementation.
package kv

import "errors"

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("kv: not found")

// ScanOptions bounds an ordered scan. Prefix restricts the scan to keys with
// that prefix; Start is the first key visited (inclusive) and must itself
// carry the prefix. Limit <= 0 means unlimited.
type ScanOptions struct {
	Prefix []byte
	Start  []byte
	Limit  int
}

// Store is an ordered key-value store with atomic batched writes. Keys are
// compared byte-lexicographically, which the index schema relies on for all
// range queries.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Scan visits entries in ascending key order. The callback returns false
	// to stop early. Key and value slices are only valid during the call.
	Scan(opts ScanOptions, fn func(key, value []byte) bool) error

	// NewBatch returns an empty write batch. Mutations are buffered in memory
	// and applied all-or-nothing on Commit.
	NewBatch() Batch

	Close() error
}

// Batch is an atomic set of mutations.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Commit applies every buffered mutation atomically. A batch must not be
	// reused after Commit.
	Commit() error

	// Len reports the number of buffered mutations.
	Len() int
}
