package store

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

type Options struct {
	Type   Type
	Shards int
	Dir    string // Directory of the persisted store scratch file
	Name   string // Unique name of the instance, used for file names
}

// Shards of one table instance and the resources they share
type Shards[TKey ShardKey, TVal any] struct {
	Stores  []Store[TKey, TVal]
	closers []io.Closer
}

func OpenShards[TKey ShardKey, TVal any](opts Options) (*Shards[TKey, TVal], error) {
	if opts.Shards < 1 {
		return nil, fmt.Errorf("invalid shard count %d", opts.Shards)
	}

	s := &Shards[TKey, TVal]{Stores: make([]Store[TKey, TVal], opts.Shards)}
	switch opts.Type {
	case Memory:
		for i := range s.Stores {
			s.Stores[i] = NewMemoryStore[TKey, TVal]()
		}
	case Persisted:
		f, err := OpenBoltFile(filepath.Join(opts.Dir, fmt.Sprintf("kkv-%s.db", opts.Name)), 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt file: %w", err)
		}
		s.closers = append(s.closers, f)
		for i := range s.Stores {
			s.Stores[i], err = NewPersistedStore[TKey, TVal](f, shardName(i))
			if err != nil {
				return nil, multierror.Append(fmt.Errorf("failed to create bucket: %w", err), f.Close())
			}
		}
	case Badger:
		db, err := OpenBadgerMemory()
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db)
		for i := range s.Stores {
			s.Stores[i] = NewBadgerStore[TKey, TVal](db, shardName(i))
		}
	default:
		return nil, fmt.Errorf("unsupported store type: %s", opts.Type)
	}
	return s, nil
}

// Count items across every shard
func (s *Shards[TKey, TVal]) Count() (int, error) {
	total := 0
	for _, st := range s.Stores {
		n, err := st.Count()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close every shard, then the shared resources
func (s *Shards[TKey, TVal]) Close() error {
	var result error
	for _, st := range s.Stores {
		if err := st.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func shardName(i int) string {
	return fmt.Sprintf("shard-%d", i)
}
