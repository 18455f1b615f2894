package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Brownie44l1/garbage-classifier/internal/config"
)

var once sync.Once
var logger *zap.Logger

// GetZapLogger returns the process-wide zap logger. Debug and info go to
// stdout, warn and above to stderr.
func GetZapLogger() *zap.Logger {
	once.Do(func() {
		encoderConfig := zap.NewProductionEncoderConfig()
		stdoutLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level == zapcore.InfoLevel
		})
		if config.Config.Server.Debug {
			encoderConfig = zap.NewDevelopmentEncoderConfig()
			stdoutLevel = func(level zapcore.Level) bool {
				return level == zapcore.DebugLevel || level == zapcore.InfoLevel
			}
		}

		// warn, error and fatal level enabler
		warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zapcore.WarnLevel
		})

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.Lock(os.Stdout),
				stdoutLevel,
			),
			zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.Lock(os.Stderr),
				warnErrorFatalLevel,
			),
		)
		logger = zap.New(core)
	})
	return logger
}
