package logging

// Log levels understood by LogLevelf
const (
	DebugLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

type Logger interface {
	LogLevelf(level int, format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type LogFunc func(format string, args ...interface{})

type LogLevelFunc func(level int, format string, args ...interface{})

// LogFuncs is the set of backend functions a Logger forwards to.
// Without LogLevelf, LogLevelf dispatches to the per-level functions.
type LogFuncs struct {
	LogLevelf LogLevelFunc
	Debugf    LogFunc
	Infof     LogFunc
	Warnf     LogFunc
	Errorf    LogFunc
}

type logger struct {
	prefix string
	funcs  LogFuncs
}

// NewLogger returns a Logger that prepends prefix to every message.
// Nil entries in funcs are treated as no-ops.
func NewLogger(prefix string, funcs LogFuncs) Logger {
	return &logger{
		prefix: prefix,
		funcs:  funcs,
	}
}

func (l *logger) LogLevelf(level int, format string, args ...interface{}) {
	if l.funcs.LogLevelf != nil {
		l.funcs.LogLevelf(level, l.prefix+format, args...)
		return
	}
	switch level {
	case DebugLevel:
		l.Debugf(format, args...)
	case WarnLevel:
		l.Warnf(format, args...)
	case ErrorLevel:
		l.Errorf(format, args...)
	default:
		l.Infof(format, args...)
	}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.call(l.funcs.Debugf, format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.call(l.funcs.Infof, format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.call(l.funcs.Warnf, format, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.call(l.funcs.Errorf, format, args...)
}

func (l *logger) call(f LogFunc, format string, args ...interface{}) {
	if f == nil {
		return
	}
	f(l.prefix+format, args...)
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return NewLogger("", LogFuncs{})
}
