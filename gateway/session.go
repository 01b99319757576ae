package gateway

import (
	"go.uber.org/zap"
)

// SessionState is the lifecycle stage of one connection.
type SessionState int

const (
	StatePending SessionState = iota
	StateOpen
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// EventKind identifies what happened on a connection.
type EventKind int

const (
	EventAdmitted EventKind = iota
	EventFrame
	EventPong
	EventClosed
)

// Event is one input to a Session.
type Event struct {
	Kind  EventKind
	Frame []byte
}

// Session drives one connection through pending, open, and closed. The socket
// loop only turns transport callbacks into events; every registry and monitor
// effect happens here. Handle is not safe for concurrent use.
type Session struct {
	peer       Peer
	state      SessionState
	registry   *Registry
	monitor    *Monitor
	dispatcher *Dispatcher
	logger     *zap.SugaredLogger
}

// NewSession creates a pending session for p.
func NewSession(p Peer, registry *Registry, monitor *Monitor, dispatcher *Dispatcher, logger *zap.SugaredLogger) *Session {
	return &Session{
		peer:       p,
		state:      StatePending,
		registry:   registry,
		monitor:    monitor,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// State returns the current state.
func (s *Session) State() SessionState {
	return s.state
}

// Handle applies ev and returns the resulting state. Events that do not apply
// to the current state are ignored.
func (s *Session) Handle(ev Event) SessionState {
	switch s.state {
	case StatePending:
		switch ev.Kind {
		case EventAdmitted:
			s.open()
		case EventClosed:
			s.state = StateClosed
		}
	case StateOpen:
		switch ev.Kind {
		case EventFrame:
			s.dispatcher.Dispatch(s.peer, ev.Frame)
		case EventPong:
			s.monitor.Pong(s.peer)
		case EventClosed:
			s.close()
		}
	}
	return s.state
}

func (s *Session) open() {
	s.registry.Admit(s.peer)
	s.state = StateOpen
	if err := sendEnvelope(s.peer, Envelope{Type: TypeWelcome}); err != nil {
		s.logger.Debugw("Failed to send welcome", "error", err)
	}
	s.monitor.Track(s.peer)
}

func (s *Session) close() {
	s.state = StateClosed
	s.monitor.Untrack(s.peer)
	if s.registry.Remove(s.peer) {
		s.logger.Debug("Connection removed")
	}
}
