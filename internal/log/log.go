// Package log provides the structured logger used across the node.
package log

import (
	"fmt"
	stdlog "log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface passed to every component.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(err error, msg string, keysAndValues ...any)

	// WithName returns a logger with name appended to its name.
	WithName(name string) Logger

	// WithValues returns a logger that adds the given pairs to every entry.
	WithValues(keysAndValues ...any) Logger

	// StdLog returns a standard library logger writing at warn level, for
	// libraries that only accept *log.Logger or an io.Writer.
	StdLog() *stdlog.Logger

	// Sync flushes buffered entries.
	Sync() error
}

var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	core *zap.Logger
}

// New builds a Logger from opts. Invalid levels fall back to info.
func New(opts *Options) (Logger, error) {
	if opts == nil {
		opts = NewOptions()
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	outputPaths := opts.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	cfg := zap.Config{
		DisableCaller:    opts.DisableCaller,
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         opts.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	core, err := cfg.Build(zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	if opts.Name != "" {
		core = core.Named(opts.Name)
	}
	return &zapLogger{core: core}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{core: zap.NewNop()}
}

// NewFromZap wraps an existing zap logger (used by tests with zaptest/observer).
func NewFromZap(core *zap.Logger) Logger {
	return &zapLogger{core: core}
}

func (z *zapLogger) Debug(msg string, keysAndValues ...any) {
	z.core.Sugar().Debugw(msg, keysAndValues...)
}

func (z *zapLogger) Info(msg string, keysAndValues ...any) {
	z.core.Sugar().Infow(msg, keysAndValues...)
}

func (z *zapLogger) Warn(msg string, keysAndValues ...any) {
	z.core.Sugar().Warnw(msg, keysAndValues...)
}

func (z *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	if err != nil {
		keysAndValues = append(keysAndValues, zap.Error(err))
	}
	z.core.Sugar().Errorw(msg, keysAndValues...)
}

func (z *zapLogger) WithName(name string) Logger {
	return &zapLogger{core: z.core.Named(name)}
}

func (z *zapLogger) WithValues(keysAndValues ...any) Logger {
	return &zapLogger{core: z.core.Sugar().With(keysAndValues...).Desugar()}
}

func (z *zapLogger) StdLog() *stdlog.Logger {
	l, err := zap.NewStdLogAt(z.core.WithOptions(zap.AddCallerSkip(-1)), zapcore.WarnLevel)
	if err != nil {
		// Only fails for invalid levels.
		return zap.NewStdLog(z.core)
	}
	return l
}

func (z *zapLogger) Sync() error {
	return z.core.Sync()
}
