package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel maps a config string ("debug", "info", ...) to a LogLevel.
// Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return LogLevelNone
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarning
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

type Logger struct {
	sugar *zap.SugaredLogger
	level LogLevel
	tag   string
}

// NewLogger builds a logger writing to stdout. Under systemd (INVOCATION_ID set)
// timestamps are left to the journal.
func NewLogger(level LogLevel) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		LevelKey:         "level",
		NameKey:          "component",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if os.Getenv("INVOCATION_ID") == "" {
		encoderConfig.TimeKey = "time"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(os.Getenv("LOGGING_FORMAT"), "JSON") {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(zapLevel(level)))
	return &Logger{
		sugar: zap.New(core).Sugar(),
		level: level,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		sugar: zap.NewNop().Sugar(),
		level: LogLevelNone,
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarning:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// WithTag creates a new logger with a tag prefix
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		sugar: l.sugar,
		level: l.level,
		tag:   tag,
	}
}

func (l *Logger) formatMessage(format string) string {
	if l.tag != "" {
		return "[" + l.tag + "] " + format
	}
	return format
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.sugar.Debugf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.sugar.Infof(l.formatMessage(format), v...)
	}
}

// Printf is an alias for Infof for compatibility
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.sugar.Warnf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.sugar.Errorf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(l.formatMessage(format), v...)
}

// Sync flushes buffered entries. Call before exit.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
