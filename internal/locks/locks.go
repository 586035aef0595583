package locks

import (
	"context"
	"hash/fnv"
)

// Locker is a named, non-blocking, non-reentrant mutual-exclusion primitive
// with process-wide scope. A false TryAcquire result is not an error: it
// means another process is already handling the identity behind the key, and
// the caller should skip its own write rather than duplicate it.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// KeyPair derives the two 31-bit integers postgres advisory locks are keyed
// by: the 64-bit fnv-1a hash of the string key, split in half with the sign
// bits masked off.
func KeyPair(key string) (int32, int32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()
	low := int32(sum & 0x7FFFFFFF)
	high := int32((sum >> 32) & 0x7FFFFFFF)
	return low, high
}
