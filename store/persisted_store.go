package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	bolt "go.etcd.io/bbolt"
)

// Bolt scratch file shared by the buckets of one table instance.
// The file is removed when closed.
type BoltFile struct {
	Db   *bolt.DB
	Path string
}

func OpenBoltFile(file string, mode fs.FileMode) (*BoltFile, error) {
	db, err := bolt.Open(file, mode, &bolt.Options{NoFreelistSync: true})
	if err != nil {
		return nil, err
	}
	return &BoltFile{Db: db, Path: file}, nil
}

func (f *BoltFile) Close() error {
	if err := f.Db.Close(); err != nil {
		return err
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Bucket backed store, closing it leaves the underlying file to its BoltFile
type PersistedStore[TKey ShardKey, TVal any] struct {
	Db         *bolt.DB
	BucketName string
}

func NewPersistedStore[TKey ShardKey, TVal any](f *BoltFile, storeName string) (*PersistedStore[TKey, TVal], error) {
	err := f.Db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(storeName))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &PersistedStore[TKey, TVal]{
		Db:         f.Db,
		BucketName: storeName,
	}, nil
}

func (s *PersistedStore[TKey, TVal]) bucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(s.BucketName))
	if b == nil {
		return nil, fmt.Errorf("bucket with name %s doesn't exist", s.BucketName)
	}
	return b, nil
}

func (s *PersistedStore[TKey, TVal]) Count() (int, error) {
	var count int
	err := s.Db.View(func(tx *bolt.Tx) error {
		b, err := s.bucket(tx)
		if err != nil {
			return err
		}
		count = b.Stats().KeyN
		return nil
	})
	return count, err
}

func (s *PersistedStore[TKey, TVal]) Get(key TKey) (TVal, error) {
	var value TVal
	err := s.Db.View(func(tx *bolt.Tx) error {
		b, err := s.bucket(tx)
		if err != nil {
			return err
		}

		jsonVal := b.Get([]byte(key.String()))
		if jsonVal == nil {
			return fmt.Errorf("value with key %s: %w", key, ErrKeyNotFound)
		}

		return json.Unmarshal(jsonVal, &value)
	})
	return value, err
}

func (s *PersistedStore[TKey, TVal]) Put(key TKey, value TVal) error {
	return s.Db.Update(func(tx *bolt.Tx) error {
		b, err := s.bucket(tx)
		if err != nil {
			return err
		}

		jsonVal, err := json.Marshal(value)
		if err != nil {
			return err
		}

		return b.Put([]byte(key.String()), jsonVal)
	})
}

func (s *PersistedStore[TKey, TVal]) Close() error {
	return nil
}
