package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger

func init() {
	// Default logger so packages can log before Init is called (tests, tools).
	Init("development", false)
}

// Init configures the global logger for the given environment.
// In production the output is JSON; in development it is console-friendly.
func Init(environment string, debug bool) {
	var cfg zap.Config
	if strings.EqualFold(environment, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	log = l.Sugar()
}

func Debug(msg string, keysAndValues ...any) {
	log.Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	log.Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	log.Warnw(msg, keysAndValues...)
}

func Error(msg string, err error, keysAndValues ...any) {
	if err != nil {
		keysAndValues = append(keysAndValues, "error", err)
	}
	log.Errorw(msg, keysAndValues...)
}

func Fatal(msg string, err error, keysAndValues ...any) {
	if err != nil {
		keysAndValues = append(keysAndValues, "error", err)
	}
	log.Fatalw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = log.Sync()
}
