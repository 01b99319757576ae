// Package gateway is the real-time side of scoreline: it admits WebSocket
// clients, tracks their match subscriptions, probes their liveness, and fans
// match events out to them.
package gateway

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"scoreline/admission"
	"scoreline/config"
	"scoreline/util/goroutine"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Close reasons sent when admission refuses a connection.
const (
	reasonDenied      = "access denied"
	reasonRateLimited = "rate limit exceeded"
	reasonGateError   = "server security error"
	reasonShutdown    = "server shutting down"
)

// Options configures a Gateway.
type Options struct {
	Path                 string
	MaxMessageBytes      int64
	SendBufferSize       int
	WriteTimeout         time.Duration
	HeartbeatInterval    time.Duration
	AllowedOrigins       []string
	TrustProxy           bool
	TrustedProxyNetworks []string
}

// OptionsFromConfig maps the server and heartbeat sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Path:                 cfg.Server.WSPath,
		MaxMessageBytes:      cfg.Server.MaxMessageBytes,
		SendBufferSize:       cfg.Server.SendBufferSize,
		WriteTimeout:         cfg.Server.WriteTimeout,
		HeartbeatInterval:    cfg.Heartbeat.Interval,
		AllowedOrigins:       cfg.Server.AllowedOrigins,
		TrustProxy:           cfg.Server.TrustProxy,
		TrustedProxyNetworks: cfg.Server.TrustedProxyNetworks,
	}
}

func (o *Options) applyDefaults() {
	if o.Path == "" {
		o.Path = "/ws"
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
}

// Gateway serves the WebSocket endpoint. It implements http.Handler.
type Gateway struct {
	opts        Options
	upgrader    websocket.Upgrader
	evaluator   admission.Evaluator
	registry    *Registry
	monitor     *Monitor
	dispatcher  *Dispatcher
	broadcaster *Broadcaster
	logger      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// New creates a gateway whose connection attempts are decided by evaluator.
func New(opts Options, evaluator admission.Evaluator, logger *zap.SugaredLogger) *Gateway {
	opts.applyDefaults()
	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	g := &Gateway{
		opts:        opts,
		evaluator:   evaluator,
		registry:    registry,
		monitor:     NewMonitor(opts.HeartbeatInterval, registry, logger),
		dispatcher:  NewDispatcher(registry, logger),
		broadcaster: NewBroadcaster(registry, logger),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Registry returns the gateway's connection registry.
func (g *Gateway) Registry() *Registry { return g.registry }

// Monitor returns the gateway's liveness monitor.
func (g *Gateway) Monitor() *Monitor { return g.monitor }

// Broadcaster returns the fan-out entry point for producers.
func (g *Gateway) Broadcaster() *Broadcaster { return g.broadcaster }

// Path returns the upgrade path.
func (g *Gateway) Path() string { return g.opts.Path }

// Start launches the liveness monitor. It is safe to call once.
func (g *Gateway) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started || g.closed {
		return
	}
	g.started = true
	goroutine.Go("liveness-monitor", g.logger, &g.wg, func() {
		g.monitor.Run(g.ctx)
	})
}

// Shutdown stops the heartbeat, closes every peer with 1001 going away and
// waits for connection goroutines to exit or ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	g.cancel()

	peers := g.registry.Peers()
	for _, p := range peers {
		goroutine.Go("ws-close-"+p.ID(), g.logger, &g.wg, func() {
			p.Close(websocket.CloseGoingAway, reasonShutdown)
		})
	}
	g.logger.Infow("Gateway closing connections", "connections", len(peers))

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		g.logger.Info("Gateway stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// checkOrigin admits clients without an Origin header. Browser origins must
// be listed in AllowedOrigins ("*" allows any); with no list configured only
// same-origin pages may connect.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(g.opts.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return slices.Contains(g.opts.AllowedOrigins, "*") || slices.Contains(g.opts.AllowedOrigins, origin)
}

// ServeHTTP upgrades the request, runs admission once, and on success serves
// the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != g.opts.Path {
		http.NotFound(w, r)
		return
	}

	req := admission.NewRequest(r, g.opts.TrustProxy, g.opts.TrustedProxyNetworks)
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warnw("WebSocket upgrade failed", "remote_ip", req.RemoteIP, "error", err)
		return
	}

	if g.isClosed() {
		refuse(conn, websocket.CloseGoingAway, reasonShutdown, g.opts.WriteTimeout)
		return
	}

	decision, err := admission.Decide(g.ctx, g.evaluator, req)
	if !decision.Admitted() {
		code, reason := refusal(decision)
		g.logger.Infow("WebSocket connection refused",
			"remote_ip", req.RemoteIP,
			"decision", decision.String(),
			"close_code", code,
			"error", err)
		refuse(conn, code, reason, g.opts.WriteTimeout)
		return
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		refuse(conn, websocket.CloseGoingAway, reasonShutdown, g.opts.WriteTimeout)
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()
	defer g.wg.Done()

	g.serve(conn, req.RemoteIP)
}

func (g *Gateway) serve(conn *websocket.Conn, remoteIP string) {
	id := uuid.NewString()
	logger := g.logger.With("conn_id", id, "remote_ip", remoteIP)
	peer := newWSPeer(id, conn, g.opts.SendBufferSize, g.opts.WriteTimeout, logger)
	session := NewSession(peer, g.registry, g.monitor, g.dispatcher, logger)

	goroutine.Go("ws-write-"+id, logger, &g.wg, peer.writePump)
	defer goroutine.Recover("ws-read-"+id, logger)

	session.Handle(Event{Kind: EventAdmitted})
	logger.Infow("WebSocket connection opened", "connections", g.registry.ConnectionCount())
	if g.ctx.Err() != nil {
		// Shutdown began after the closed check; its sweep may have missed us.
		peer.Close(websocket.CloseGoingAway, reasonShutdown)
	}

	conn.SetReadLimit(g.opts.MaxMessageBytes)
	conn.SetPongHandler(func(string) error {
		session.Handle(Event{Kind: EventPong})
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Debugw("WebSocket closed unexpectedly", "error", err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		session.Handle(Event{Kind: EventFrame, Frame: data})
	}

	session.Handle(Event{Kind: EventClosed})
	peer.Terminate()
	logger.Infow("WebSocket connection closed", "connections", g.registry.ConnectionCount())
}

// refusal maps a non-admitting decision to its close code and reason.
func refusal(d admission.Decision) (int, string) {
	switch d {
	case admission.Deny:
		return websocket.ClosePolicyViolation, reasonDenied
	case admission.RateLimited:
		return websocket.CloseTryAgainLater, reasonRateLimited
	default:
		return websocket.CloseInternalServerErr, reasonGateError
	}
}

func refuse(conn *websocket.Conn, code int, reason string, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
	_ = conn.Close()
}
