package utils

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger described by cfg, writing to out. The
// level is applied globally so that ApplyLevel can change it later.
func NewLogger(cfg Config, out io.Writer) zerolog.Logger {
	ApplyLevel(cfg)
	w := out
	if cfg.LogFormat != LogFormatJSON {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("app", "axon").Logger()
}

// ApplyLevel sets the global zerolog level from cfg. Unknown levels fall
// back to info.
func ApplyLevel(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
