// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"forest-cover/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how log lines are written.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	File   string // optional rotating log file, written in addition to stderr
}

// Setup replaces the global logger and returns a closer for the file sink.
// The closer is a no-op when no file is configured.
func Setup(opts Options) io.Closer {
	return SetupWithWriter(opts, os.Stderr)
}

// SetupWithWriter is Setup with an explicit console writer.
func SetupWithWriter(opts Options, out io.Writer) io.Closer {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = out
	if strings.EqualFold(opts.Format, "console") {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	var closer io.Closer = nopCloser{}
	writer := console
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    common.DefaultLogMaxSizeMB,
			MaxBackups: common.DefaultLogMaxBackups,
			MaxAge:     common.DefaultLogMaxAgeDays,
			Compress:   true,
		}
		// the file always gets JSON lines
		writer = zerolog.MultiLevelWriter(console, rotator)
		closer = rotator
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	return closer
}

// ParseLevel converts a level name to a zerolog level. Unknown names map to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
