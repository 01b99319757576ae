package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"scoreline/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process logger. format is "console" (colored levels,
// readable timestamps) or "json".
func InitLogger(level, format string) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration.
func InitConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// logConfig records the effective settings once the logger exists.
func logConfig(cfg *config.Config, sugar *zap.SugaredLogger) {
	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	} else {
		sugar.Infow("Config file loaded", "path", viper.ConfigFileUsed())
	}

	sugar.Infow("Config loaded",
		"addr", cfg.Addr(),
		"ws_path", cfg.Server.WSPath,
		"heartbeat_interval", cfg.Heartbeat.Interval,
		"sqlite_path", cfg.Storage.SQLitePath,
		"auth_enabled", cfg.Auth.Enabled)

	sugar.Infow("Admission configuration",
		"mode", string(cfg.Admission.Mode),
		"websocket_limit", cfg.Admission.WebSocket.Limit,
		"websocket_window", cfg.Admission.WebSocket.Window,
		"http_limit", cfg.Admission.HTTP.Limit,
		"http_window", cfg.Admission.HTTP.Window,
		"redis_enabled", cfg.Admission.Redis.Enabled)
	if cfg.IsDryRun() {
		sugar.Warn("Admission is in dry-run mode: refusals are logged but not enforced")
	}
}
