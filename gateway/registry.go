package gateway

import (
	"slices"
	"sync"

	"scoreline/metrics"
)

// Registry is the authoritative index of admitted peers and their match
// subscriptions. Both directions are kept under one lock so an edge is never
// present on one side only.
type Registry struct {
	mu     sync.RWMutex
	topics map[int64]map[Peer]struct{}
	peers  map[Peer]map[int64]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[int64]map[Peer]struct{}),
		peers:  make(map[Peer]map[int64]struct{}),
	}
}

// Admit registers p with no subscriptions. It returns false if p was already
// registered.
func (r *Registry) Admit(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[p]; ok {
		return false
	}
	r.peers[p] = make(map[int64]struct{})
	r.updateGauges()
	return true
}

// Subscribe adds the edge (matchID, p). It returns false, and changes
// nothing, if p is not registered.
func (r *Registry) Subscribe(matchID int64, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.peers[p]
	if !ok {
		return false
	}
	subs[matchID] = struct{}{}

	set, ok := r.topics[matchID]
	if !ok {
		set = make(map[Peer]struct{})
		r.topics[matchID] = set
	}
	set[p] = struct{}{}
	r.updateGauges()
	return true
}

// Unsubscribe removes the edge (matchID, p), dropping the topic once its last
// subscriber leaves. It reports whether an edge was removed.
func (r *Registry) Unsubscribe(matchID int64, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.detach(matchID, p)
	if subs, ok := r.peers[p]; ok {
		delete(subs, matchID)
	}
	r.updateGauges()
	return removed
}

// Remove detaches p from every topic and forgets it. A second call is a
// no-op; the return value tells the caller whether this call did the work.
func (r *Registry) Remove(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.peers[p]
	if !ok {
		return false
	}
	for matchID := range subs {
		r.detach(matchID, p)
	}
	delete(r.peers, p)
	r.updateGauges()
	return true
}

// detach removes p from the topic set. Caller holds r.mu.
func (r *Registry) detach(matchID int64, p Peer) bool {
	set, ok := r.topics[matchID]
	if !ok {
		return false
	}
	if _, ok := set[p]; !ok {
		return false
	}
	delete(set, p)
	if len(set) == 0 {
		delete(r.topics, matchID)
	}
	return true
}

// updateGauges publishes registry sizes. Caller holds r.mu.
func (r *Registry) updateGauges() {
	metrics.ActiveConnections.Set(float64(len(r.peers)))
	metrics.ActiveTopics.Set(float64(len(r.topics)))
}

// Has reports whether p is registered.
func (r *Registry) Has(p Peer) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[p]
	return ok
}

// Peers returns a snapshot of every registered peer.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Peer, 0, len(r.peers))
	for p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Subscribers returns a snapshot of the peers subscribed to matchID.
func (r *Registry) Subscribers(matchID int64) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.topics[matchID]
	out := make([]Peer, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// Topics returns the match ids p is subscribed to, in ascending order.
func (r *Registry) Topics(p Peer) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.peers[p]
	out := make([]int64, 0, len(subs))
	for matchID := range subs {
		out = append(out, matchID)
	}
	slices.Sort(out)
	return out
}

// ConnectionCount returns the number of registered peers.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// TopicCount returns the number of topics with at least one subscriber.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
