// Package fridge is a key/value store shared by every client of one process.
//
// The store has an explicit lifecycle: Init creates an empty table, Destroy
// drops it. Put and Get only work in between. A Get with the Block flag waits
// for a Put on its key, a Destroy, or the cancellation of its context,
// without holding any lock while it waits.
package fridge

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"kkv/store"
)

type Fridge struct {
	cfg Config

	// Held shared by put and get critical sections, exclusive by init and
	// destroy
	mu    sync.RWMutex
	state State
	inst  *instance
}

// New creates an uninitialized Fridge, zero fields of cfg take their
// default value.
func New(cfg Config) *Fridge {
	c := DefaultConfig()
	c.Merge(&cfg)
	return &Fridge{cfg: c, state: Uninitialized}
}

func (f *Fridge) Init(flags int) error {
	if _, err := ParseFlag(flags); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !ValidStateTransition(f.state, Active) {
		return fmt.Errorf("%w: store is already initialized", ErrPermissionDenied)
	}

	inst, err := newInstance(f.cfg)
	if err != nil {
		return fmt.Errorf("%w: failed to create the table: %v", ErrIO, err)
	}
	f.inst = inst
	f.state = Active
	return nil
}

// Destroy drops the table and every entry in it, blocked gets fail with
// ErrPermissionDenied. Returns the number of entries removed. The store is
// uninitialized afterwards even when releasing the backing storage fails.
func (f *Fridge) Destroy(flags int) (int, error) {
	if _, err := ParseFlag(flags); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !ValidStateTransition(f.state, Uninitialized) {
		return 0, fmt.Errorf("%w: store is not initialized", ErrPermissionDenied)
	}

	inst := f.inst
	f.inst = nil
	f.state = Uninitialized

	removed, err := inst.destroy()
	if err != nil {
		return removed, fmt.Errorf("%w: failed to release the table: %v", ErrIO, err)
	}
	return removed, nil
}

// Put replaces the value of key with a copy of value. It never blocks.
func (f *Fridge) Put(key Key, value []byte, flags int) error {
	if _, err := ParseFlag(flags); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state != Active {
		return fmt.Errorf("%w: store is not initialized", ErrPermissionDenied)
	}
	return f.inst.put(key, slices.Clone(value))
}

// Get returns the first length bytes of the value of key, or the whole value
// when it is shorter.
//
// Without an entry, NonBlock fails with ErrNotFound while Block waits. A
// waiting Get fails with ErrInterrupted when ctx is done and with
// ErrPermissionDenied when the store is destroyed.
func (f *Fridge) Get(ctx context.Context, key Key, length int, flags int) ([]byte, error) {
	mode, err := ParseFlag(flags)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidArgument, length)
	}

	var inst *instance
	for {
		f.mu.RLock()
		if f.state != Active || (inst != nil && f.inst != inst) {
			f.mu.RUnlock()
			return nil, fmt.Errorf("%w: store is not initialized", ErrPermissionDenied)
		}
		inst = f.inst
		value, w, err := inst.getOrWait(key, length, mode)
		f.mu.RUnlock()

		if w == nil {
			return value, err
		}
		if err := inst.wait(ctx, key, w); err != nil {
			return nil, err
		}
	}
}

// MaxBytes returns the bound on stored value bytes, 0 when unbounded
func (f *Fridge) MaxBytes() int64 {
	return f.cfg.MaxBytes
}

// Point in time view of the store
type Stats struct {
	State    string     `json:"state"`
	Instance string     `json:"instance,omitempty"`
	Backend  store.Type `json:"backend"`
	Shards   int        `json:"shards"`
	Entries  int        `json:"entries"`
	Bytes    int64      `json:"bytes"`
	MaxBytes int64      `json:"max_bytes"`
	Waiters  int64      `json:"waiters"`
	InitTime *time.Time `json:"init_time,omitempty"`
}

func (f *Fridge) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := Stats{
		State:    f.state.String(),
		Backend:  f.cfg.Backend,
		Shards:   f.cfg.Shards,
		MaxBytes: f.cfg.MaxBytes,
	}
	if f.inst == nil {
		return s
	}
	created := f.inst.created
	s.Instance = f.inst.id.String()
	s.Entries = f.inst.entryCount()
	s.Bytes = f.inst.bytes.Load()
	s.Waiters = f.inst.waiting.Load()
	s.InitTime = &created
	return s
}
