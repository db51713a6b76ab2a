package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/deployhub/internal/config"
)

// NewLogger builds the process-wide zerolog.Logger. Output is JSON on
// stdout; the service name tells the api and worker binaries apart in
// aggregated logs. An unparseable LOG_LEVEL falls back to info rather than
// failing startup.
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(os.Stdout).Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}

	return ctx.Logger()
}
