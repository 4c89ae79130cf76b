package realtime

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// DefaultShards is used when NewRegistry is given a non-positive count.
const DefaultShards = 32

// Subscriber is one live session as seen by the registry.
type Subscriber interface {
	// ID is unique per session for the life of the process.
	ID() string
	// Deliver hands ev to the session without blocking. It returns false if
	// the session is closing or cannot accept more events.
	Deliver(ev domain.Event) bool
}

// Registry maps actor group keys to the sessions subscribed to them.
// Keys are spread over independently locked shards so broadcasts to
// unrelated actors never contend.
type Registry struct {
	shards []*shard
}

type shard struct {
	mu     sync.RWMutex
	groups map[domain.GroupKey]map[string]Subscriber
}

// NewRegistry returns an empty registry with n shards.
func NewRegistry(n int) *Registry {
	if n <= 0 {
		n = DefaultShards
	}
	r := &Registry{shards: make([]*shard, n)}
	for i := range r.shards {
		r.shards[i] = &shard{groups: make(map[domain.GroupKey]map[string]Subscriber)}
	}
	return r
}

func (r *Registry) shardFor(key domain.GroupKey) *shard {
	return r.shards[xxhash.Sum64String(string(key))%uint64(len(r.shards))]
}

// Register adds sub under key. Registering the same session twice is a no-op.
func (r *Registry) Register(sub Subscriber, key domain.GroupKey) {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.groups[key]
	if !ok {
		set = make(map[string]Subscriber)
		s.groups[key] = set
		groupsActive.Inc()
	}
	if _, dup := set[sub.ID()]; dup {
		return
	}
	set[sub.ID()] = sub
	sessionsActive.Inc()
}

// Unregister removes sub from key and drops the key once it has no sessions.
func (r *Registry) Unregister(sub Subscriber, key domain.GroupKey) {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.groups[key]
	if !ok {
		return
	}
	if _, ok := set[sub.ID()]; !ok {
		return
	}
	delete(set, sub.ID())
	sessionsActive.Dec()
	if len(set) == 0 {
		delete(s.groups, key)
		groupsActive.Dec()
	}
}

// Broadcast delivers ev to every session registered under key at the time
// of the call, except the one whose ID is skipID. Delivery happens outside
// the shard lock and is best effort: failures are counted and logged, never
// retried. It returns the number of sessions that accepted the event.
func (r *Registry) Broadcast(key domain.GroupKey, ev domain.Event, skipID string) int {
	s := r.shardFor(key)
	s.mu.RLock()
	set := s.groups[key]
	targets := make([]Subscriber, 0, len(set))
	for id, sub := range set {
		if id != skipID {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	evType := string(ev.Type())
	broadcastsTotal.WithLabelValues(evType).Inc()

	delivered := 0
	for _, sub := range targets {
		if sub.Deliver(ev) {
			delivered++
			continue
		}
		broadcastDropped.WithLabelValues(evType).Inc()
		log.Warn().
			Str("group", string(key)).
			Str("event", evType).
			Str("session_id", sub.ID()).
			Msg("event dropped")
	}
	return delivered
}

// Sessions returns the ids registered under key, in no particular order.
func (r *Registry) Sessions(key domain.GroupKey) []string {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.groups[key]))
	for id := range s.groups[key] {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered sessions across all groups.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.groups {
			n += len(set)
		}
		s.mu.RUnlock()
	}
	return n
}

// Groups returns the number of keys with at least one session.
func (r *Registry) Groups() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.groups)
		s.mu.RUnlock()
	}
	return n
}
