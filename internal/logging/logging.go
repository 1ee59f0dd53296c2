// Package logging builds the process logger.
package logging

import (
	"fmt"
	"github.com/rs/zerolog"
	"io"
	"strings"
	"time"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w at the given level, either human
// readable (console) or one JSON object per line.
func New(w io.Writer, level string, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case FormatConsole, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Printer adapts a zerolog logger to the Println/Printf logger used by the
// MQTT client library. Every line is logged at level.
type Printer struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func NewPrinter(logger zerolog.Logger, level zerolog.Level) Printer {
	return Printer{logger: logger, level: level}
}

func (p Printer) Println(v ...interface{}) {
	p.logger.WithLevel(p.level).Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (p Printer) Printf(format string, v ...interface{}) {
	p.logger.WithLevel(p.level).Msg(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}
