package utils

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures the shared file-backed logger
type LoggerOptions struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewLogger builds a log.Logger that writes to stdout and a rotating file.
// With an empty FilePath the logger writes to stdout only.
func NewLogger(prefix string, opts LoggerOptions) *log.Logger {
	var w io.Writer = os.Stdout
	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		w = io.MultiWriter(os.Stdout, rotator)
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds|log.LUTC)
}
