package fridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-collections/collections/queue"
	"github.com/google/uuid"

	"kkv/store"
)

// One bucket of the table: its entries and the waiters of its keys share
// a single lock, a get can't miss the put it is waiting for.
type shard struct {
	mu      sync.Mutex
	entries store.Store[Key, []byte]
	sizes   map[Key]int
	waiters map[Key]*queue.Queue
}

// Table and wait queues created by one successful init
type instance struct {
	id       uuid.UUID
	created  time.Time
	backend  store.Type
	backing  *store.Shards[Key, []byte]
	shards   []*shard
	maxBytes int64
	bytes    atomic.Int64
	waiting  atomic.Int64
}

func newInstance(cfg Config) (*instance, error) {
	id := uuid.New()
	backing, err := store.OpenShards[Key, []byte](store.Options{
		Type:   cfg.Backend,
		Shards: cfg.Shards,
		Dir:    cfg.Dir,
		Name:   id.String(),
	})
	if err != nil {
		return nil, err
	}

	inst := &instance{
		id:       id,
		created:  time.Now().UTC(),
		backend:  cfg.Backend,
		backing:  backing,
		shards:   make([]*shard, len(backing.Stores)),
		maxBytes: cfg.MaxBytes,
	}
	for i, entries := range backing.Stores {
		inst.shards[i] = &shard{
			entries: entries,
			sizes:   make(map[Key]int),
			waiters: make(map[Key]*queue.Queue),
		}
	}
	return inst, nil
}

func (inst *instance) shardFor(key Key) *shard {
	return inst.shards[key.hash()%uint64(len(inst.shards))]
}

// Account delta stored bytes, refusing growth past maxBytes
func (inst *instance) reserve(delta int64) bool {
	if inst.maxBytes <= 0 || delta <= 0 {
		inst.bytes.Add(delta)
		return true
	}
	for {
		current := inst.bytes.Load()
		if current+delta > inst.maxBytes {
			return false
		}
		if inst.bytes.CompareAndSwap(current, current+delta) {
			return true
		}
	}
}

// Store value under key and wake the waiters of key. value must not be
// shared with the caller.
func (inst *instance) put(key Key, value []byte) error {
	sh := inst.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delta := int64(len(value) - sh.sizes[key])
	if !inst.reserve(delta) {
		return fmt.Errorf("%w: storing %d bytes on key %v exceeds the %d bytes bound", ErrOutOfMemory, len(value), key, inst.maxBytes)
	}
	if err := sh.entries.Put(key, value); err != nil {
		inst.bytes.Add(-delta)
		return fmt.Errorf("%w: put on key %v: %v", ErrIO, key, err)
	}
	sh.sizes[key] = len(value)
	sh.wakeLocked(key)
	return nil
}

// Read at most length bytes of key. When the key has no entry and mode is
// Block, a queued waiter is returned instead.
func (inst *instance) getOrWait(key Key, length int, mode Flag) ([]byte, *waiter, error) {
	sh := inst.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, found := sh.sizes[key]; found {
		value, err := sh.entries.Get(key)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: get on key %v: %v", ErrIO, key, err)
		}
		out := make([]byte, min(length, len(value)))
		copy(out, value)
		return out, nil, nil
	}

	if mode == NonBlock {
		return nil, nil, fmt.Errorf("%w: key %v", ErrNotFound, key)
	}
	w := newWaiter()
	sh.enqueueLocked(key, w)
	return nil, w, nil
}

// Abort every waiter and release the backing storage.
// Returns the number of entries dropped.
func (inst *instance) destroy() (int, error) {
	tracked := 0
	for _, sh := range inst.shards {
		sh.mu.Lock()
		sh.abortAllLocked()
		tracked += len(sh.sizes)
		sh.mu.Unlock()
	}

	removed, err := inst.backing.Count()
	if err != nil {
		removed = tracked
	}
	if closeErr := inst.backing.Close(); closeErr != nil {
		return removed, closeErr
	}
	return removed, nil
}

func (inst *instance) entryCount() int {
	n := 0
	for _, sh := range inst.shards {
		sh.mu.Lock()
		n += len(sh.sizes)
		sh.mu.Unlock()
	}
	return n
}
