package gateway

import (
	"encoding/json"

	"scoreline/core"
	"scoreline/metrics"

	"go.uber.org/zap"
)

// Broadcaster fans envelopes out to registered peers. Delivery is best
// effort: a peer whose queue is full or closed is skipped and the rest still
// receive the frame.
type Broadcaster struct {
	registry *Registry
	logger   *zap.SugaredLogger
}

var _ core.EventPublisher = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// BroadcastGlobal delivers env to every registered peer and returns how many
// accepted it.
func (b *Broadcaster) BroadcastGlobal(env Envelope) int {
	metrics.Broadcasts.WithLabelValues("global").Inc()
	return b.deliver(env, b.registry.Peers())
}

// BroadcastToTopic delivers env to the peers subscribed to matchID at call
// time. A topic without subscribers is a no-op.
func (b *Broadcaster) BroadcastToTopic(matchID int64, env Envelope) int {
	metrics.Broadcasts.WithLabelValues("topic").Inc()
	peers := b.registry.Subscribers(matchID)
	if len(peers) == 0 {
		return 0
	}
	return b.deliver(env, peers)
}

// MatchCreated implements core.EventPublisher.
func (b *Broadcaster) MatchCreated(match *core.Match) {
	b.BroadcastGlobal(Envelope{Type: TypeMatchCreated, Data: match})
}

// Commentary implements core.EventPublisher.
func (b *Broadcaster) Commentary(matchID int64, commentary *core.Commentary) {
	b.BroadcastToTopic(matchID, Envelope{Type: TypeCommentary, Data: commentary})
}

func (b *Broadcaster) deliver(env Envelope, peers []Peer) int {
	frame, err := json.Marshal(env)
	if err != nil {
		b.logger.Errorw("Failed to marshal broadcast", "type", env.Type, "error", err)
		return 0
	}

	delivered := 0
	for _, p := range peers {
		if p.Send(frame) {
			delivered++
			continue
		}
		metrics.DroppedDeliveries.Inc()
		b.logger.Debugw("Skipped delivery to busy connection", "conn_id", p.ID(), "type", env.Type)
	}
	metrics.Deliveries.Add(float64(delivered))
	return delivered
}
