package kv

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store on top of badger. Badger keeps keys in sorted
// order, so its iterators satisfy the ordering contract directly.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenBadgerInMemory opens a badger database that lives entirely in memory.
// Used by tests and one-off tooling.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return value, nil
}

func (s *BadgerStore) Scan(opts ScanOptions, fn func(key, value []byte) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = opts.Prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		start := opts.Start
		if start == nil {
			start = opts.Prefix
		}

		seen := 0
		for it.Seek(start); it.Valid(); it.Next() {
			if opts.Limit > 0 && seen >= opts.Limit {
				return nil
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.Key(), value) {
				return nil
			}
			seen++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger scan: %w", err)
	}
	return nil
}

func (s *BadgerStore) NewBatch() Batch {
	return &badgerBatch{db: s.db}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// badgerBatch buffers mutations in memory and applies them in one badger
// transaction, so a failed commit leaves the store untouched.
type badgerBatch struct {
	db  *badger.DB
	ops []batchOp
}

func (b *badgerBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *badgerBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{
		key:    append([]byte(nil), key...),
		delete: true,
	})
}

func (b *badgerBatch) Commit() error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			if op.delete {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger commit batch of %d ops: %w", len(b.ops), err)
	}
	return nil
}

func (b *badgerBatch) Len() int {
	return len(b.ops)
}
