package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Peer is the gateway's handle on one client connection. Send and Ping never
// block; Send reports false when the frame could not be queued.
type Peer interface {
	ID() string
	Send(frame []byte) bool
	Ping() error
	Close(code int, reason string)
	Terminate()
}

// sendEnvelope marshals env and queues it on p.
func sendEnvelope(p Peer, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}
	if !p.Send(frame) {
		return ErrSendQueueFull
	}
	return nil
}

// wsPeer is a Peer backed by a gorilla websocket connection. Data frames and
// pings are both written by writePump, so a client that stops reading only
// ever stalls its own writer.
type wsPeer struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	ping         chan struct{}
	writeTimeout time.Duration
	logger       *zap.SugaredLogger

	done      chan struct{}
	closeOnce sync.Once
}

func newWSPeer(id string, conn *websocket.Conn, bufferSize int, writeTimeout time.Duration, logger *zap.SugaredLogger) *wsPeer {
	return &wsPeer{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		ping:         make(chan struct{}, 1),
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

func (p *wsPeer) ID() string { return p.id }

// Send implements Peer.
func (p *wsPeer) Send(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

// Ping implements Peer. It only signals writePump; a ping that is already
// pending absorbs the new one.
func (p *wsPeer) Ping() error {
	select {
	case <-p.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case p.ping <- struct{}{}:
	default:
	}
	return nil
}

// Close sends a close frame with code and reason, then drops the connection.
func (p *wsPeer) Close(code int, reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(p.writeTimeout)); err != nil {
			p.logger.Debugw("Failed to send close frame", "code", code, "error", err)
		}
		_ = p.conn.Close()
	})
}

// Terminate drops the connection without a closing handshake.
func (p *wsPeer) Terminate() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// writePump writes queued frames and pings until the peer is closed or a
// write fails.
func (p *wsPeer) writePump() {
	for {
		select {
		case <-p.done:
			return
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.logger.Debugw("WebSocket write failed", "error", err)
				p.Terminate()
				return
			}
		case <-p.ping:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(p.writeTimeout)); err != nil {
				p.logger.Debugw("WebSocket ping failed", "error", err)
				p.Terminate()
				return
			}
		}
	}
}
