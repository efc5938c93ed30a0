// Package txlog is the shared logging backend for checkqueue and mempool.
//
// It follows the subsystem-logger convention used throughout the
// btcsuite/copernicus family: a package-level logger that is a no-op until
// a caller wires one in with UseLogger, so importing this module never
// forces output on an embedding application.
package txlog

import (
	"github.com/astaxie/beego/logs"
)

// log is the backend used by Debug/Info/Warn/Error/Trace. It stays nil
// until UseLogger is called, at which point every subsequent call is
// routed to it.
var log *logs.BeeLogger

// UseLogger wires a beego logger into the package. Passing nil disables
// logging again.
func UseLogger(logger *logs.BeeLogger) {
	log = logger
}

// NewDefaultLogger returns a beego logger writing to stdout at the given
// level, for callers that don't want to build their own beego.BeeLogger.
func NewDefaultLogger(level int) *logs.BeeLogger {
	l := logs.NewLogger()
	l.EnableFuncCallDepth(true)
	_ = l.SetLogger(logs.AdapterConsole)
	l.SetLevel(level)
	return l
}

func Trace(format string, args ...interface{}) {
	if log != nil {
		log.Trace(format, args...)
	}
}

func Debug(format string, args ...interface{}) {
	if log != nil {
		log.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if log != nil {
		log.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if log != nil {
		log.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if log != nil {
		log.Error(format, args...)
	}
}
