package boids

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// TextLogger writes one plain line per entry through the standard log
// package. It is the fallback when a zap logger cannot be built.
type TextLogger struct {
	name  string
	debug atomic.Bool
	out   *log.Logger
}

func NewTextLogger(w io.Writer, name string, debug bool) *TextLogger {
	l := &TextLogger{
		name: name,
		out:  log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
	l.debug.Store(debug)
	return l
}

func (l *TextLogger) DebugEnabled() bool    { return l.debug.Load() }
func (l *TextLogger) SetDebug(enabled bool) { l.debug.Store(enabled) }

func (l *TextLogger) emit(level, format string, args []any) {
	msg := fmt.Sprintf(format, args...)
	if l.name == "" {
		l.out.Printf("%-5s %s", level, msg)
		return
	}
	l.out.Printf("%-5s %s: %s", level, l.name, msg)
}

func (l *TextLogger) Debugf(format string, args ...any) {
	if l.DebugEnabled() {
		l.emit("DEBUG", format, args)
	}
}

func (l *TextLogger) Infof(format string, args ...any)  { l.emit("INFO", format, args) }
func (l *TextLogger) Warnf(format string, args ...any)  { l.emit("WARN", format, args) }
func (l *TextLogger) Errorf(format string, args ...any) { l.emit("ERROR", format, args) }

// ZapLogger adapts a zap logger. SetDebug moves the shared level, so loggers
// derived from the same base follow it.
type ZapLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a zap logger named after the component. It writes
// colored console output to stderr, or plain console lines to paths when
// any are given.
func NewZapLogger(name string, debug bool, paths ...string) (*ZapLogger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	cfg.Development = false
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if len(paths) > 0 {
		cfg.OutputPaths = paths
		cfg.ErrorOutputPaths = paths
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return WrapZap(base.Named(name), level), nil
}

// WrapZap adapts an existing logger whose core is gated by level.
func WrapZap(base *zap.Logger, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{level: level, sugar: base.Sugar()}
}

func (l *ZapLogger) DebugEnabled() bool { return l.level.Enabled(zapcore.DebugLevel) }

func (l *ZapLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.SetLevel(zapcore.DebugLevel)
		return
	}
	l.level.SetLevel(zapcore.InfoLevel)
}

func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
