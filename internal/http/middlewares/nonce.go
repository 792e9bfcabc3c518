package middlewares

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultNonceCapacity = 65536

// NonceCache remembers nonces of accepted signed requests for as long as
// their timestamp could still pass the drift check.
type NonceCache struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func NewNonceCache(capacity int, ttl time.Duration) *NonceCache {
	if capacity <= 0 {
		capacity = DefaultNonceCapacity
	}
	return &NonceCache{seen: expirable.NewLRU[string, struct{}](capacity, nil, ttl)}
}

// Claim records key and reports false when it was already used.
func (n *NonceCache) Claim(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	// Get, unlike Contains, ignores entries past their ttl
	if _, ok := n.seen.Get(key); ok {
		return false
	}
	n.seen.Add(key, struct{}{})
	return true
}
