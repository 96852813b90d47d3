package store

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
)

// Opens an in-memory badger database, nothing is written to disk.
// It is up to the caller to close it.
func OpenBadgerMemory() (*badger.DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithMemTableSize(16 << 20).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open the badger database: %w", err)
	}
	return db, nil
}

// Store living under a key prefix of a shared badger database
type BadgerStore[TKey ShardKey, TVal any] struct {
	Db     *badger.DB
	Prefix []byte
}

func NewBadgerStore[TKey ShardKey, TVal any](db *badger.DB, prefix string) *BadgerStore[TKey, TVal] {
	return &BadgerStore[TKey, TVal]{Db: db, Prefix: []byte(prefix + "/")}
}

func (s *BadgerStore[TKey, TVal]) key(key TKey) []byte {
	k := make([]byte, 0, len(s.Prefix)+20)
	k = append(k, s.Prefix...)
	return append(k, key.String()...)
}

func (s *BadgerStore[TKey, TVal]) Count() (int, error) {
	var count int
	err := s.Db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = s.Prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore[TKey, TVal]) Get(key TKey) (TVal, error) {
	var value TVal
	err := s.Db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("value with key %s: %w", key, ErrKeyNotFound)
		}
		if err != nil {
			return fmt.Errorf("can't retrieve a value for key %s: %w", key, err)
		}

		// Values are only valid inside the transaction, copy them out
		jsonVal, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("can't copy the value from the database: %w", err)
		}
		return json.Unmarshal(jsonVal, &value)
	})
	return value, err
}

func (s *BadgerStore[TKey, TVal]) Put(key TKey, value TVal) error {
	jsonVal, err := json.Marshal(value)
	if err != nil {
		return err
	}
	err = s.Db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), jsonVal)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func (s *BadgerStore[TKey, TVal]) Close() error {
	return nil
}
