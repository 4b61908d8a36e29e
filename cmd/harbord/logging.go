package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkrell/harbord/config"
)

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// workerLogger writes plain console lines. Worker output is usually
// captured by the supervisor's multiplexer, so color is off.
func workerLogger() zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: true}
	return zerolog.New(w).With().Timestamp().Logger()
}
