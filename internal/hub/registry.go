package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type clientBucket struct {
	sync.RWMutex
	clients map[string]*Client
}

// Registry maps userId -> live Client, sharded to keep lock contention
// low under connection churn. One entry per user: a second login for
// the same user overwrites the first.
type Registry struct {
	shards [shardCount]*clientBucket
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &clientBucket{
			clients: make(map[string]*Client),
		}
	}
	return r
}

func getShard(userId string) uint32 {
	if userId == "" {
		return 0
	}

	h := sha1.Sum([]byte(userId))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// Register installs c as the live client for its user. Returns the
// previous client for the same user, or nil.
func (r *Registry) Register(c *Client) *Client {
	b := r.shards[getShard(c.userId)]
	b.Lock()
	defer b.Unlock()

	prev := b.clients[c.userId]
	b.clients[c.userId] = c
	return prev
}

// Lookup returns the live client for userId, or nil.
func (r *Registry) Lookup(userId string) *Client {
	b := r.shards[getShard(userId)]
	b.RLock()
	defer b.RUnlock()
	return b.clients[userId]
}

// Unregister removes c from the registry. The entry is only removed if
// it still points at c: a newer connection for the same user must not
// be evicted by the old one's teardown.
func (r *Registry) Unregister(c *Client) {
	b := r.shards[getShard(c.userId)]
	b.Lock()
	defer b.Unlock()

	if cur, ok := b.clients[c.userId]; ok && cur == c {
		delete(b.clients, c.userId)
	}
}

// Count returns the number of live clients.
func (r *Registry) Count() int {
	total := 0
	for _, b := range r.shards {
		b.RLock()
		total += len(b.clients)
		b.RUnlock()
	}
	return total
}

// Snapshot returns all live clients. Used by the monitor endpoint.
func (r *Registry) Snapshot() []*Client {
	clients := make([]*Client, 0)
	for _, b := range r.shards {
		b.RLock()
		for _, c := range b.clients {
			clients = append(clients, c)
		}
		b.RUnlock()
	}
	return clients
}

// ForEach calls fn for every live client.
func (r *Registry) ForEach(fn func(c *Client)) {
	for _, c := range r.Snapshot() {
		fn(c)
	}
}
