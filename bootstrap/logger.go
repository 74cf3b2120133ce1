package bootstrap

import (
	"fmt"
	"io"
	"time"

	"github.com/artpar/querywire/config"
	"github.com/rs/zerolog"
)

// NewLogger builds the application logger. The level is applied globally so
// that a config reload can change it for every component at once.
func NewLogger(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, error) {
	levelStr := cfg.Level
	if levelStr == "" {
		levelStr = "info"
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging.level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
		return zerolog.New(output).With().Timestamp().Logger(), nil
	}

	return zerolog.New(out).With().Timestamp().Logger(), nil
}
