/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Disabled turns every logging call into a no-op. Meant for tests.
var Disabled int32

var inst atomic.Value

type logger struct {
	sugar *zap.SugaredLogger
}

func init() {
	inst.Store(newLogger("info"))
}

// Initialize sets the global logging level. Valid levels are
// "debug", "info", "warn" and "error".
func Initialize(level string) {
	inst.Store(newLogger(level))
}

func newLogger(level string) *logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableCaller = true
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &logger{sugar: l.Sugar()}
}

func instance() *logger {
	return inst.Load().(*logger)
}

// Debugf writes a formatted 'debug' level message.
func Debugf(format string, args ...interface{}) {
	if atomic.LoadInt32(&Disabled) == 1 {
		return
	}
	instance().sugar.Debugf(format, args...)
}

// Infof writes a formatted 'info' level message.
func Infof(format string, args ...interface{}) {
	if atomic.LoadInt32(&Disabled) == 1 {
		return
	}
	instance().sugar.Infof(format, args...)
}

// Warnf writes a formatted 'warning' level message.
func Warnf(format string, args ...interface{}) {
	if atomic.LoadInt32(&Disabled) == 1 {
		return
	}
	instance().sugar.Warnf(format, args...)
}

// Errorf writes a formatted 'error' level message.
func Errorf(format string, args ...interface{}) {
	if atomic.LoadInt32(&Disabled) == 1 {
		return
	}
	instance().sugar.Errorf(format, args...)
}

// Error writes an error value as an 'error' level message.
func Error(err error) {
	if atomic.LoadInt32(&Disabled) == 1 {
		return
	}
	instance().sugar.Error(err)
}
