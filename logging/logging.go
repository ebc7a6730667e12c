// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/warp/payments-engine/config"
)

// New returns a JSON logger on stderr. Development mode switches to a
// console writer with caller info at trace level. LOG_LEVEL overrides the
// level, except that "info" leaves development at trace. stdout is left
// alone because the CLI writes its report there.
func New(cfg config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(cfg config.Config, out io.Writer) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	log := zerolog.New(out).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()

	if cfg.IsDevelopment() {
		log = log.
			Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(zerolog.TraceLevel).
			With().
			Caller().
			Logger()
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil && cfg.LogLevel != "" {
		if !cfg.IsDevelopment() || lvl != zerolog.InfoLevel {
			log = log.Level(lvl)
		}
	}

	return log
}

// WithRunID tags every line with a fresh run id.
func WithRunID(log zerolog.Logger) (zerolog.Logger, string) {
	id := uuid.NewString()
	return log.With().Str("run_id", id).Logger(), id
}
