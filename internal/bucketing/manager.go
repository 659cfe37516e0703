package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Manager assigns users to fixed buckets so the Scylla user tables stay
// evenly partitioned. Bucket assignment must be stable for a given user ID.
type Manager struct {
	userBuckets int
	hasherPool  sync.Pool
}

const defaultUserBuckets = 64

func NewManager(userBuckets int) *Manager {
	if userBuckets <= 0 {
		userBuckets = defaultUserBuckets
	}

	m := &Manager{userBuckets: userBuckets}

	// Pool of hash functions to avoid allocation overhead
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return m
}

// GetUserBucket returns a consistent bucket for the user (0 to userBuckets-1).
func (m *Manager) GetUserBucket(userID string) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(userID))

	return int(hasher.Sum64() % uint64(m.userBuckets))
}

func (m *Manager) UserBuckets() int {
	return m.userBuckets
}
