package admission

import (
	"fmt"

	"scoreline/config"
	"scoreline/core"

	"go.uber.org/zap"
)

// NewPolicyFromConfig builds the policy for profile (ProfileWebSocket or
// ProfileHTTP). redis may be nil, in which case the in-memory sliding window
// is used even if Redis is enabled in cfg.
func NewPolicyFromConfig(cfg *config.Config, profile string, redis *core.RedisCache, logger *zap.SugaredLogger) (*Policy, error) {
	var wc config.WindowConfig
	switch profile {
	case ProfileWebSocket:
		wc = cfg.Admission.WebSocket
	case ProfileHTTP:
		wc = cfg.Admission.HTTP
	default:
		return nil, fmt.Errorf("unknown admission profile %q", profile)
	}

	var window Window
	if cfg.Admission.Redis.Enabled && redis != nil {
		window = NewRedisWindow(profile, wc.Limit, wc.Window, redis, logger)
	} else {
		sw, err := NewSlidingWindow(wc.Limit, wc.Window, cfg.Admission.LimiterCacheSize)
		if err != nil {
			return nil, err
		}
		window = sw
	}

	pc := PolicyConfig{
		Profile:         profile,
		DryRun:          cfg.IsDryRun(),
		ExemptIPs:       cfg.Admission.ExemptIPs,
		Window:          window,
		GlobalPerSecond: cfg.Admission.GlobalPerSecond,
		Timeout:         cfg.Admission.EvaluateTimeout,
	}
	if cfg.Admission.Shield {
		shield, err := NewShield(DefaultMatchTimeout)
		if err != nil {
			return nil, err
		}
		pc.Shield = shield
	}
	if cfg.Admission.BotDetection {
		bots, err := NewBotDetector(cfg.Admission.AllowedBotCategories, DefaultMatchTimeout)
		if err != nil {
			return nil, err
		}
		pc.Bots = bots
	}

	return NewPolicy(pc, logger.With("component", "admission", "profile", profile))
}
