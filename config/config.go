package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AdmissionMode controls whether admission decisions are enforced.
type AdmissionMode string

const (
	// AdmissionModeLive enforces every decision (default)
	AdmissionModeLive AdmissionMode = "live"
	// AdmissionModeDryRun logs refusals but admits the request anyway.
	// Evaluator failures are still refused.
	AdmissionModeDryRun AdmissionMode = "dry_run"
)

// WindowConfig describes a per-client rate window.
type WindowConfig struct {
	Limit  int           `mapstructure:"limit"`  // Maximum attempts per window
	Window time.Duration `mapstructure:"window"` // Window length
}

// rate returns attempts per second.
func (w WindowConfig) rate() float64 {
	return float64(w.Limit) / w.Window.Seconds()
}

// RedisConfig holds connection settings for the shared rate window backend.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Config holds all configuration for the scoreline service
type Config struct {
	Server struct {
		Host                 string        `mapstructure:"host"`
		Port                 int           `mapstructure:"port"`
		WSPath               string        `mapstructure:"ws_path"`
		MaxMessageBytes      int64         `mapstructure:"max_message_bytes"`
		SendBufferSize       int           `mapstructure:"send_buffer_size"`
		WriteTimeout         time.Duration `mapstructure:"write_timeout"`
		// AllowedOrigins lists browser origins for CORS and the WebSocket
		// upgrade. "*" allows any origin. Empty means same-origin only for
		// the upgrade and no CORS headers for the API.
		AllowedOrigins       []string      `mapstructure:"allowed_origins"`
		TrustProxy           bool          `mapstructure:"trust_proxy"`
		TrustedProxyNetworks []string      `mapstructure:"trusted_proxy_networks"`
	} `mapstructure:"server"`

	Heartbeat struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"heartbeat"`

	Admission struct {
		Mode                 AdmissionMode `mapstructure:"mode"`
		ExemptIPs            []string      `mapstructure:"exempt_ips"`
		Shield               bool          `mapstructure:"shield"`
		BotDetection         bool          `mapstructure:"bot_detection"`
		AllowedBotCategories []string      `mapstructure:"allowed_bot_categories"`
		LimiterCacheSize     int           `mapstructure:"limiter_cache_size"`
		EvaluateTimeout      time.Duration `mapstructure:"evaluate_timeout"`
		GlobalPerSecond      int           `mapstructure:"global_per_second"` // Process-wide ceiling per profile
		WebSocket            WindowConfig  `mapstructure:"websocket"`
		HTTP                 WindowConfig  `mapstructure:"http"`
		Redis                RedisConfig   `mapstructure:"redis"`
	} `mapstructure:"admission"`

	Storage struct {
		SQLitePath   string        `mapstructure:"sqlite_path"`
		QueryTimeout time.Duration `mapstructure:"query_timeout"`
	} `mapstructure:"storage"`

	Auth struct {
		Enabled   bool   `mapstructure:"enabled"`
		JWTSecret string `mapstructure:"jwt_secret"`
		Issuer    string `mapstructure:"issuer"`
	} `mapstructure:"auth"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "console" or "json"
	} `mapstructure:"logging"`
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.ws_path", "/ws")
	viper.SetDefault("server.max_message_bytes", 1024*1024) // 1 MiB
	viper.SetDefault("server.send_buffer_size", 256)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.allowed_origins", []string{})
	viper.SetDefault("server.trust_proxy", false)
	viper.SetDefault("server.trusted_proxy_networks", []string{})

	viper.SetDefault("heartbeat.interval", 30*time.Second)

	viper.SetDefault("admission.mode", string(AdmissionModeLive))
	viper.SetDefault("admission.exempt_ips", []string{})
	viper.SetDefault("admission.shield", true)
	viper.SetDefault("admission.bot_detection", true)
	viper.SetDefault("admission.allowed_bot_categories", []string{"search_engine", "preview"})
	viper.SetDefault("admission.limiter_cache_size", 10000)
	viper.SetDefault("admission.evaluate_timeout", 2*time.Second)
	viper.SetDefault("admission.global_per_second", 1000)
	// websocket must stay at or below the http rate (see validateConfig)
	viper.SetDefault("admission.websocket.limit", 5)
	viper.SetDefault("admission.websocket.window", 2*time.Second)
	viper.SetDefault("admission.http.limit", 50)
	viper.SetDefault("admission.http.window", 10*time.Second)
	viper.SetDefault("admission.redis.enabled", false)
	viper.SetDefault("admission.redis.addr", "localhost:6379")
	viper.SetDefault("admission.redis.password", "")
	viper.SetDefault("admission.redis.db", 0)
	viper.SetDefault("admission.redis.pool_size", 10)

	viper.SetDefault("storage.sqlite_path", "./data/scoreline.db")
	viper.SetDefault("storage.query_timeout", 5*time.Second)

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.issuer", "scoreline")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("SCORELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Shorter names for the settings operators touch most
	_ = viper.BindEnv("server.port", "SCORELINE_PORT")
	_ = viper.BindEnv("storage.sqlite_path", "SCORELINE_SQLITE_PATH")
	_ = viper.BindEnv("auth.jwt_secret", "SCORELINE_JWT_SECRET")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, fmt.Sprintf("%d", c.Server.Port))
}

// IsDryRun reports whether admission refusals are only logged.
func (c *Config) IsDryRun() bool {
	return c.Admission.Mode == AdmissionModeDryRun
}

func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", config.Server.Port)
	}
	if !strings.HasPrefix(config.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with '/', got %q", config.Server.WSPath)
	}
	if config.Server.MaxMessageBytes < 1 {
		return fmt.Errorf("server.max_message_bytes must be positive")
	}
	if config.Server.SendBufferSize < 1 {
		return fmt.Errorf("server.send_buffer_size must be positive")
	}
	if config.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	for _, network := range config.Server.TrustedProxyNetworks {
		if !isValidIPOrCIDR(network) {
			return fmt.Errorf("invalid trusted proxy network: %s", network)
		}
	}

	if config.Heartbeat.Interval < 100*time.Millisecond {
		return fmt.Errorf("heartbeat.interval must be at least 100ms, got %v", config.Heartbeat.Interval)
	}

	switch config.Admission.Mode {
	case AdmissionModeLive, AdmissionModeDryRun:
	default:
		return fmt.Errorf("admission.mode must be %q or %q, got %q", AdmissionModeLive, AdmissionModeDryRun, config.Admission.Mode)
	}
	for _, ip := range config.Admission.ExemptIPs {
		if !isValidIPOrCIDR(ip) {
			return fmt.Errorf("invalid exempt IP: %s", ip)
		}
	}
	windows := []struct {
		name string
		w    WindowConfig
	}{
		{"websocket", config.Admission.WebSocket},
		{"http", config.Admission.HTTP},
	}
	for _, w := range windows {
		if w.w.Limit < 1 {
			return fmt.Errorf("admission.%s.limit must be positive", w.name)
		}
		if w.w.Window <= 0 {
			return fmt.Errorf("admission.%s.window must be positive", w.name)
		}
	}
	if config.Admission.WebSocket.rate() > config.Admission.HTTP.rate() {
		return fmt.Errorf("admission.websocket rate (%d per %v) must not exceed admission.http rate (%d per %v)",
			config.Admission.WebSocket.Limit, config.Admission.WebSocket.Window,
			config.Admission.HTTP.Limit, config.Admission.HTTP.Window)
	}
	if config.Admission.GlobalPerSecond < 1 {
		return fmt.Errorf("admission.global_per_second must be positive")
	}
	if config.Admission.EvaluateTimeout <= 0 {
		return fmt.Errorf("admission.evaluate_timeout must be positive")
	}
	if config.Admission.LimiterCacheSize < 1 {
		return fmt.Errorf("admission.limiter_cache_size must be positive")
	}
	if config.Admission.Redis.Enabled && config.Admission.Redis.Addr == "" {
		return fmt.Errorf("admission.redis.addr cannot be empty when redis is enabled")
	}

	if config.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path cannot be empty")
	}

	if config.Auth.Enabled && len(config.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters (256 bits) when auth is enabled")
	}

	switch config.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", config.Logging.Format)
	}

	return nil
}

// isValidIPOrCIDR checks if a string is a valid IP address or CIDR notation
func isValidIPOrCIDR(ipStr string) bool {
	if net.ParseIP(ipStr) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(ipStr)
	return err == nil
}
