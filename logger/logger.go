// Package logger configures the process wide zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Levels accepted by Setup, anything else falls back to info
var levels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"error": zerolog.ErrorLevel,
}

func Setup(minimumLogLevel, serviceName string) {
	SetupWriter(os.Stderr, minimumLogLevel, serviceName)
}

// SetupWriter is Setup with the log output sent to w
func SetupWriter(w io.Writer, minimumLogLevel, serviceName string) {
	level, found := levels[minimumLogLevel]
	if !found {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Int("pid", os.Getpid()).
		Logger()
}
