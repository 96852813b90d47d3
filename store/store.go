package store

import (
	"errors"
	"fmt"
)

var ErrKeyNotFound = errors.New("key not found")

// Backing storage for one shard of the table
type Store[TKey, TVal any] interface {
	Get(key TKey) (TVal, error)
	Put(key TKey, value TVal) error
	Count() (int, error)
	Close() error
}

// Key of a sharded store: usable as a map key and printable as a bucket or
// prefix key
type ShardKey interface {
	comparable
	fmt.Stringer
}

// Type of backing storage
type Type string

const (
	Memory    Type = "memory"    // Go map on the heap
	Persisted Type = "persisted" // bbolt scratch file
	Badger    Type = "badger"    // badger in in-memory mode
)

var allTypes = []Type{Memory, Persisted, Badger}

// Parse a store type name
func ParseType(v string) (Type, error) {
	for _, t := range allTypes {
		if string(t) == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported store type %q, allowed values: %q, %q, %q", v, Memory, Persisted, Badger)
}
