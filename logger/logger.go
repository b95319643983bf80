// Package logger wires up the zerolog.Logger every other package in this
// module takes as a dependency.
package logger

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/alfreddev/connpool/config"
)

// New returns a configured zerolog.Logger: pretty console output at the
// level named by cfg.LogLevel. cfg.Env only picks the fallback level (debug
// in development, info otherwise), used when cfg.LogLevel does not parse.
func New(cfg *config.ServiceConfig) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if cfg.Env == "development" {
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger()
}
