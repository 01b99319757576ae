package admission

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"scoreline/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Profile names used in metrics and Redis keys.
const (
	ProfileWebSocket = "websocket"
	ProfileHTTP      = "http"
)

// PolicyConfig configures a Policy.
type PolicyConfig struct {
	Profile   string
	DryRun    bool
	ExemptIPs []string
	// Shield and Bots may be nil to disable those rules.
	Shield *Shield
	Bots   *BotDetector
	// Window is the per-client rate window.
	Window Window
	// GlobalPerSecond caps attempts across all clients; 0 disables the cap.
	GlobalPerSecond int
	Timeout         time.Duration
}

// Policy evaluates connection attempts for one traffic profile.
type Policy struct {
	profile   string
	dryRun    bool
	exemptIPs map[string]bool
	exemptNet []*net.IPNet
	shield    *Shield
	bots      *BotDetector
	window    Window
	global    *rate.Limiter
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// NewPolicy builds a policy from cfg.
func NewPolicy(cfg PolicyConfig, logger *zap.SugaredLogger) (*Policy, error) {
	if cfg.Window == nil {
		return nil, fmt.Errorf("policy %s: window is required", cfg.Profile)
	}
	p := &Policy{
		profile:   cfg.Profile,
		dryRun:    cfg.DryRun,
		exemptIPs: make(map[string]bool),
		shield:    cfg.Shield,
		bots:      cfg.Bots,
		window:    cfg.Window,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
	for _, entry := range cfg.ExemptIPs {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("policy %s: invalid exempt network %q: %w", cfg.Profile, entry, err)
			}
			p.exemptNet = append(p.exemptNet, ipNet)
			continue
		}
		p.exemptIPs[entry] = true
	}
	if cfg.GlobalPerSecond > 0 {
		p.global = rate.NewLimiter(rate.Limit(cfg.GlobalPerSecond), cfg.GlobalPerSecond)
	}
	return p, nil
}

// Profile returns the traffic profile this policy applies to.
func (p *Policy) Profile() string {
	return p.profile
}

// IsExempt checks if an IP is exempt from the policy
func (p *Policy) IsExempt(ip string) bool {
	if p.exemptIPs[ip] {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range p.exemptNet {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

// Evaluate implements Evaluator. A non-nil error always comes with GateError.
func (p *Policy) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	decision, reason, err := p.evaluate(ctx, req)
	if err != nil {
		metrics.AdmissionDecisions.WithLabelValues(p.profile, GateError.String()).Inc()
		p.logger.Errorw("Admission evaluation failed",
			"profile", p.profile,
			"remote_ip", req.RemoteIP,
			"error", err)
		return GateError, err
	}

	if decision != Allow && p.dryRun {
		p.logger.Infow("Admission refusal suppressed (dry run)",
			"profile", p.profile,
			"remote_ip", req.RemoteIP,
			"decision", decision.String(),
			"reason", reason)
		decision = Allow
	} else if decision != Allow {
		p.logger.Infow("Admission refused",
			"profile", p.profile,
			"remote_ip", req.RemoteIP,
			"decision", decision.String(),
			"reason", reason)
	}

	metrics.AdmissionDecisions.WithLabelValues(p.profile, decision.String()).Inc()
	return decision, nil
}

func (p *Policy) evaluate(ctx context.Context, req Request) (Decision, string, error) {
	if p.IsExempt(req.RemoteIP) {
		return Allow, "exempt", nil
	}

	if p.shield != nil {
		sig, err := p.shield.Inspect(req)
		if err != nil {
			return GateError, "", fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, err)
		}
		if sig != "" {
			return Deny, "shield:" + sig, nil
		}
	}

	if p.bots != nil {
		blocked, category, err := p.bots.Blocked(req.UserAgent)
		if err != nil {
			return GateError, "", fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, err)
		}
		if blocked {
			return Deny, "bot:" + string(category), nil
		}
	}

	if p.global != nil && !p.global.Allow() {
		return RateLimited, "global", nil
	}

	ok, err := p.window.Allow(ctx, req.RemoteIP)
	if err != nil {
		return GateError, "", err
	}
	if !ok {
		return RateLimited, "window", nil
	}
	return Allow, "", nil
}
