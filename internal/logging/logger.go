package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger with key/value helpers.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New creates a Logger writing to stderr.
func New(level, format string) *Logger {
	return NewWithOutput(level, format, os.Stderr)
}

// NewWithOutput creates a Logger writing to output. Unknown levels fall back
// to info and unknown formats to json.
func NewWithOutput(level, format string, output io.Writer) *Logger {
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		atomicLevel.SetLevel(zapcore.InfoLevel)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch format {
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), atomicLevel)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	base := zap.NewNop()
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

func (l *Logger) Named(name string) *Logger {
	named := l.base.Named(name)
	return &Logger{SugaredLogger: named.Sugar(), base: named}
}

func (l *Logger) With(args ...interface{}) *Logger {
	sugared := l.SugaredLogger.With(args...)
	return &Logger{SugaredLogger: sugared, base: sugared.Desugar()}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}
