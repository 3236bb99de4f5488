// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a small leveled-logging helper in the style of
// go-kratos/kratos's log package: a Logger interface, a level filter, and
// a printf-style Helper.
package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a log severity.
type Level int8

// Severity levels, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every helper writes through.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes "TIMESTAMP LEVEL key=val key=val" lines to a io.Writer,
// the timestamp in RFC 3339 form.
type stdLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdLogger returns a Logger that writes plain text lines to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{out: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf("%s %s", time.Now().Format(time.RFC3339), level)
	for i := 0; i+1 < len(keyvals); i += 2 {
		msg += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	_, err := fmt.Fprintln(l.out, msg)
	return err
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel drops any record below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger and drops records below a minimum level.
type Filter struct {
	next  Logger
	level Level
}

// NewFilter returns a Logger that forwards to next, after applying opts.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &Filter{next: next, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, msg string) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", msg)
}

// Debug logs msg at debug level.
func (h *Helper) Debug(args ...interface{}) { h.log(LevelDebug, fmt.Sprint(args...)) }

// Debugf logs a formatted message at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) {
	h.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs msg at info level.
func (h *Helper) Info(args ...interface{}) { h.log(LevelInfo, fmt.Sprint(args...)) }

// Infof logs a formatted message at info level.
func (h *Helper) Infof(format string, args ...interface{}) {
	h.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs msg at warn level.
func (h *Helper) Warn(args ...interface{}) { h.log(LevelWarn, fmt.Sprint(args...)) }

// Warnf logs a formatted message at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) {
	h.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs msg at error level.
func (h *Helper) Error(args ...interface{}) { h.log(LevelError, fmt.Sprint(args...)) }

// Errorf logs a formatted message at error level.
func (h *Helper) Errorf(format string, args ...interface{}) {
	h.log(LevelError, fmt.Sprintf(format, args...))
}
