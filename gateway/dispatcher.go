package gateway

import (
	"errors"

	"scoreline/metrics"

	"go.uber.org/zap"
)

// Dispatcher applies client control frames to the registry.
type Dispatcher struct {
	registry *Registry
	logger   *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch handles one inbound frame from p. Malformed JSON is answered with
// a single error envelope; an unusable matchId or an unknown type is dropped
// without a reply. The connection is never closed from here.
func (d *Dispatcher) Dispatch(p Peer, frame []byte) {
	in, err := DecodeInbound(frame)
	if err != nil {
		metrics.InboundMessages.WithLabelValues("malformed").Inc()
		d.reply(p, ErrorEnvelope(err.Error()))
		return
	}

	switch in.Type {
	case TypeSubscribe, TypeUnsubscribe:
	default:
		metrics.InboundMessages.WithLabelValues("unknown").Inc()
		d.logger.Debugw("Ignoring unknown message type", "conn_id", p.ID(), "type", in.Type)
		return
	}

	if !in.HasMatchID {
		metrics.InboundMessages.WithLabelValues("invalid_match_id").Inc()
		d.logger.Debugw("Ignoring message with invalid matchId", "conn_id", p.ID(), "type", in.Type)
		return
	}

	metrics.InboundMessages.WithLabelValues(in.Type).Inc()
	if in.Type == TypeSubscribe {
		if !d.registry.Subscribe(in.MatchID, p) {
			d.logger.Debugw("Subscribe from unregistered connection", "conn_id", p.ID(), "match_id", in.MatchID)
			return
		}
		d.reply(p, Subscribed(in.MatchID))
		return
	}

	d.registry.Unsubscribe(in.MatchID, p)
	d.reply(p, Unsubscribed(in.MatchID))
}

func (d *Dispatcher) reply(p Peer, env Envelope) {
	if err := sendEnvelope(p, env); err != nil {
		if errors.Is(err, ErrSendQueueFull) {
			metrics.DroppedDeliveries.Inc()
		}
		d.logger.Debugw("Failed to reply", "conn_id", p.ID(), "type", env.Type, "error", err)
	}
}
