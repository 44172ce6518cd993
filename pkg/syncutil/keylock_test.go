package syncutil

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	var (
		locks   KeyLock
		wg      sync.WaitGroup
		counter int
	)
	userID := uuid.New()

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.LockUser(userID)
			defer unlock()
			current := counter
			counter = current + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
}

func TestKeyLockSameKeySameShard(t *testing.T) {
	var locks KeyLock
	if locks.shard("abc") != locks.shard("abc") {
		t.Fatal("same key must map to the same shard")
	}
}
