// Package obslog provides the shared structured logger for the collector.
package obslog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultMaxBytes = 5_000_000
const defaultBackupCount = 5

// Config controls how the shared logger is constructed.
type Config struct {
	Verbosity   int    // 0 = info, 1 = debug, 2+ = trace
	Follow      bool   // also write to stdout
	LogFile     string // rotating file destination; empty disables file logging
	MaxBytes    int64
	BackupCount int
}

var (
	mu  sync.Mutex
	log *logrus.Logger
)

// Init constructs the shared logger from cfg and installs it as the package
// default. It is safe to call more than once; the most recent call wins.
func Init(cfg Config) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetLevel(levelFor(cfg.Verbosity))

	if cfg.Verbosity >= 1 {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			DisableQuote:    true,
			DisableColors:   true,
			PadLevelText:    true,
			QuoteEmptyFields: true,
		})
	}

	var writers []io.Writer
	if cfg.Follow {
		writers = append(writers, os.Stdout)
	}
	if cfg.LogFile != "" {
		maxBytes := cfg.MaxBytes
		if maxBytes <= 0 {
			maxBytes = defaultMaxBytes
		}
		backups := cfg.BackupCount
		if backups <= 0 {
			backups = defaultBackupCount
		}
		rw, err := newRotatingWriter(cfg.LogFile, maxBytes, backups)
		if err != nil {
			return nil, fmt.Errorf("obslog: opening log file %s: %w", cfg.LogFile, err)
		}
		writers = append(writers, rw)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	mu.Lock()
	log = l
	mu.Unlock()
	return l, nil
}

// Get returns the shared logger, falling back to a bare stderr logger if
// Init was never called (e.g. in unit tests that don't care about output).
func Get() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		return l
	}
	return log
}

func levelFor(verbosity int) logrus.Level {
	switch {
	case verbosity >= 2:
		return logrus.TraceLevel
	case verbosity == 1:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
