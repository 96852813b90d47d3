package fridge

import (
	"context"
	"fmt"

	"github.com/golang-collections/collections/queue"
)

// A get suspended until its key gets an entry or the instance goes away.
// released and destroyed are guarded by the lock of the shard the waiter
// is queued on.
type waiter struct {
	ch        chan struct{}
	released  bool
	destroyed bool
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan struct{})}
}

// Caller must hold the shard lock
func (w *waiter) release(destroyed bool) {
	if w.released {
		return
	}
	w.released = true
	w.destroyed = destroyed
	close(w.ch)
}

// Queue w on key, the queue is created on first use.
// Caller must hold the shard lock.
func (sh *shard) enqueueLocked(key Key, w *waiter) {
	q, found := sh.waiters[key]
	if !found {
		q = queue.New()
		sh.waiters[key] = q
	}
	q.Enqueue(w)
}

// Release every waiter of key so each one retries its read.
// Caller must hold the shard lock.
func (sh *shard) wakeLocked(key Key) {
	q, found := sh.waiters[key]
	if !found {
		return
	}
	for q.Len() > 0 {
		q.Dequeue().(*waiter).release(false)
	}
	delete(sh.waiters, key)
}

// Release every waiter of every key with a permission error.
// Caller must hold the shard lock.
func (sh *shard) abortAllLocked() {
	for key, q := range sh.waiters {
		for q.Len() > 0 {
			q.Dequeue().(*waiter).release(true)
		}
		delete(sh.waiters, key)
	}
}

// Take w out of the queue of key, dropping the queue once empty.
// Caller must hold the shard lock.
func (sh *shard) dropLocked(key Key, w *waiter) {
	q, found := sh.waiters[key]
	if !found {
		return
	}
	kept := queue.New()
	for q.Len() > 0 {
		if other := q.Dequeue().(*waiter); other != w {
			kept.Enqueue(other)
		}
	}
	if kept.Len() == 0 {
		delete(sh.waiters, key)
		return
	}
	sh.waiters[key] = kept
}

// Suspend until w is released or ctx is done. A nil error means the caller
// must retry its read.
func (inst *instance) wait(ctx context.Context, key Key, w *waiter) error {
	inst.waiting.Add(1)
	defer inst.waiting.Add(-1)

	sh := inst.shardFor(key)
	select {
	case <-w.ch:
	case <-ctx.Done():
		sh.mu.Lock()
		if !w.released {
			sh.dropLocked(key, w)
			sh.mu.Unlock()
			return fmt.Errorf("%w: get on key %v: %v", ErrInterrupted, key, context.Cause(ctx))
		}
		// Released concurrently with the interruption, honour the release
		sh.mu.Unlock()
	}

	if w.destroyed {
		return fmt.Errorf("%w: store destroyed while waiting on key %v", ErrPermissionDenied, key)
	}
	return nil
}
