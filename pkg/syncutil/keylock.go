package syncutil

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const shardCount = 256

// KeyLock serializes work per key over a fixed pool of mutexes. Keys that hash
// to the same shard share a mutex, which only costs throughput.
type KeyLock struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the shard for key and returns its unlock function.
func (k *KeyLock) Lock(key string) func() {
	mu := k.shard(key)
	mu.Lock()
	return mu.Unlock
}

// LockUser is Lock keyed by a user id.
func (k *KeyLock) LockUser(userID uuid.UUID) func() {
	return k.Lock(userID.String())
}

func (k *KeyLock) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &k.shards[h.Sum32()%shardCount]
}
