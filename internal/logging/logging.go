// Package logging builds the diagnostic file logger.
//
// Console output is rendered from engine events; the file log carries the
// details behind it: every dispatched command, task START/END lines and
// panic stacks.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the file logger.
type Options struct {
	// Path of the log file. Empty uses DefaultPath.
	Path string
	// Verbose enables V(1) messages.
	Verbose bool
}

// Logger is a logr.Logger bound to an open log file.
type Logger struct {
	logr.Logger
	Path string

	zl *zap.Logger
	f  *os.File
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.zl != nil {
		_ = l.zl.Sync()
	}
	if l.f != nil {
		return l.f.Close()
	}
	return nil
}

// DefaultPath returns the log file path under the XDG state directory,
// ~/.local/state/calcifer/calcifer.log unless XDG_STATE_HOME is set.
func DefaultPath() string {
	// The xdg package resolves its directories at init; pick up changes made
	// since then.
	xdg.Reload()
	return filepath.Join(xdg.StateHome, "calcifer", "calcifer.log")
}

// New opens (appending) the log file and returns a JSON logger writing to it.
func New(opts Options) (*Logger, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	// #nosec G304 -- path is provided by the operator
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "time"

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
	zl := zap.New(core)

	return &Logger{
		Logger: zapr.NewLogger(zl).WithName("calcifer"),
		Path:   path,
		zl:     zl,
		f:      f,
	}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: logr.Discard()}
}
