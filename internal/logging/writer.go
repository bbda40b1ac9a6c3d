package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions controls rotation of the optional log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewWriter returns stdout, or stdout tee'd into a rotating file when
// opts.Path is set. The returned closer releases the file handle.
func NewWriter(opts FileOptions) (io.Writer, io.Closer) {
	if opts.Path == "" {
		return os.Stdout, nopCloser{}
	}

	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	return io.MultiWriter(os.Stdout, lj), lj
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
