package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Rotation holds lumberjack rotation parameters. Zero values select the defaults.
type Rotation struct {
	MaxSizeMB  int  `mapstructure:"log_max_size_mb"`
	MaxBackups int  `mapstructure:"log_max_backups"`
	MaxAgeDays int  `mapstructure:"log_max_age_days"`
	Compress   bool `mapstructure:"log_compress"`
}

// Writer returns a rotating writer for path, or nil when path is empty.
func (r Rotation) Writer(path string) io.WriteCloser {
	if path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(r.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(r.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(r.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   r.Compress,
	}
}

// Output describes where a supervised program's stdout and stderr go.
// An empty path discards that stream.
type Output struct {
	StdoutPath string
	StderrPath string
	Rotation
}

// ProcessWriters returns writers for stdout and stderr. Either may be nil.
// When both paths name the same file a single writer is shared so rotation
// does not race between two lumberjack instances.
func (o Output) ProcessWriters() (io.WriteCloser, io.WriteCloser) {
	outW := o.Writer(o.StdoutPath)
	if o.StderrPath != "" && o.StderrPath == o.StdoutPath {
		return outW, nopCloser{outW}
	}
	return outW, o.Writer(o.StderrPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Config describes the supervisor's own log.
type Config struct {
	File  string // rotating log file; empty disables file logging
	Level string // debug, info, warn, error
	Rotation
	Console io.Writer // optional mirror, usually os.Stderr
	Color   bool      // colorize the console mirror
}

// ParseLevel maps a level name onto slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds the supervisor logger. The returned closer flushes the log file
// and is never nil.
func New(c Config) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{io.Discard}
	if w := c.Writer(c.File); w != nil {
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
		closer = w
	}
	if c.Console != nil {
		if c.Color {
			handlers = append(handlers, NewColorTextHandler(c.Console, opts, true))
		} else {
			handlers = append(handlers, slog.NewTextHandler(c.Console, opts))
		}
	}
	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, opts)), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	default:
		return slog.New(Fanout(handlers...)), closer, nil
	}
}

// Discard returns a logger that drops every record; handy for tests and
// embedded use.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
