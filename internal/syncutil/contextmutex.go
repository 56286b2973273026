// Package syncutil provides keyed locking for the document-per-key store.
//
// Writers that read-modify-write a whole document (signup's duplicate-email
// check, for one) lock the document's kv key so two of them cannot
// interleave. Locks live in a fixed shard pool keyed by hash, so memory
// stays bounded no matter how many keys a process touches; two keys landing
// in the same shard contend harmlessly.
package syncutil

import (
	"context"
	"hash/fnv"
	"sync"
)

const shardCount = 256

// ContextShardedMutex is a pool of per-key locks that honor context
// cancellation while waiting. The zero value is ready to use.
type ContextShardedMutex struct {
	shards [shardCount]chanMutex
	once   sync.Once
}

// chanMutex holds the lock as a one-slot channel so acquisition can sit in
// a select against ctx.Done().
type chanMutex struct {
	ch chan struct{}
}

// NewContextShardedMutex creates a ready-to-use lock pool.
func NewContextShardedMutex() *ContextShardedMutex {
	m := &ContextShardedMutex{}
	m.init()
	return m
}

func (m *ContextShardedMutex) init() {
	m.once.Do(func() {
		for i := range m.shards {
			m.shards[i].ch = make(chan struct{}, 1)
			m.shards[i].ch <- struct{}{} // starts unlocked
		}
	})
}

// LockContext acquires the lock for key, or gives up when ctx is done.
// On success the caller must invoke the returned unlock function; on
// cancellation it returns nil and the context error.
func (m *ContextShardedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	m.init()
	shard := &m.shards[m.shardFor(key)]

	select {
	case <-shard.ch:
		return func() { shard.ch <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *ContextShardedMutex) shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
