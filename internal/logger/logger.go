package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rl1809/fulfilment/config"
)

// New builds a zap logger. Development environments get a console encoder
// at debug level regardless of cfg.
func New(appEnv string, cfg config.LoggerConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if appEnv == "development" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		if cfg.Encoding != "" {
			zapCfg.Encoding = cfg.Encoding
		}
	}

	zapCfg.DisableCaller = cfg.DisableCaller
	zapCfg.DisableStacktrace = cfg.DisableStacktrace
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}
