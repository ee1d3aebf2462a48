// Package logger builds the component-tagged zerolog loggers used across AuraRouter.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.SetGlobalLevel(levelFromEnv())
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("AURAROUTER_LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger tagged with component, writing pretty console output
// unless AURAROUTER_ENV=production, in which case it writes bare JSON.
func New(component string) zerolog.Logger {
	var out zerolog.Logger
	if strings.EqualFold(os.Getenv("AURAROUTER_ENV"), "production") {
		out = zerolog.New(os.Stderr)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.With().Timestamp().Str("component", component).Logger()
}
