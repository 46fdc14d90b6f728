package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "requestID"
	UserIDKey    ContextKey = "userID"
)

func init() {
	RegisterContextKey(RequestIDKey, "request_id")
	RegisterContextKey(UserIDKey, "user_id")
}

// WithRequestID stores id under RequestIDKey. The transport reuses it as the
// X-Request-ID of outgoing calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

type LogManager interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	DebugF(format string, args ...any)
	InfoF(format string, args ...any)
	WarnF(format string, args ...any)
	ErrorF(format string, args ...any)

	DebugFCtx(ctx context.Context, format string, args ...any)
	InfoFCtx(ctx context.Context, format string, args ...any)
	WarnFCtx(ctx context.Context, format string, args ...any)
	ErrorFCtx(ctx context.Context, format string, args ...any)

	With(keyValues ...any) LogManager

	Sync() error
	SetLogLevel(level string) error
}

// FileOptions enables a rotating JSON log file next to the regular outputs.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LoggerOptions for custom configuration
type LoggerOptions struct {
	Level        string
	Encoding     string // "json" or "console"
	OutputPaths  []string
	ErrorPaths   []string
	EnableCaller bool
	EnableStack  bool
	TimeFormat   string
	File         *FileOptions
}

// NewLogger creates a new logger with options
func NewLogger(opts LoggerOptions) (LogManager, error) {
	// Dynamic log level (can be changed at runtime)
	atomicLevel := zap.NewAtomicLevel()

	if err := atomicLevel.UnmarshalText([]byte(opts.Level)); err != nil {
		atomicLevel.SetLevel(zap.InfoLevel)
	}

	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalColorLevelEncoder,
		EncodeTime:    zapcore.TimeEncoderOfLayout(timeFormat),
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	if opts.Encoding == "" {
		opts.Encoding = "console"
	}
	if opts.Encoding == "json" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if len(opts.OutputPaths) == 0 {
		opts.OutputPaths = []string{"stdout"}
	}
	if len(opts.ErrorPaths) == 0 {
		opts.ErrorPaths = []string{"stderr"}
	}

	cfg := zap.Config{
		Level:            atomicLevel,
		Development:      opts.Level == "debug",
		Encoding:         opts.Encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      opts.OutputPaths,
		ErrorOutputPaths: opts.ErrorPaths,
	}

	if opts.EnableCaller {
		cfg.EncoderConfig.CallerKey = "caller"
	} else {
		cfg.EncoderConfig.CallerKey = ""
	}

	buildOpts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if opts.File != nil && opts.File.Filename != "" {
		fileCore := newFileCore(*opts.File, cfg.EncoderConfig, atomicLevel)
		buildOpts = append(buildOpts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	zapLogger, err := cfg.Build(buildOpts...)
	if err != nil {
		return nil, err
	}

	if opts.EnableStack {
		zapLogger = zapLogger.WithOptions(zap.AddStacktrace(zap.WarnLevel))
	}

	return &logger{
		Log:         zapLogger.Sugar(),
		atomicLevel: atomicLevel,
	}, nil
}

// newFileCore always writes JSON; colour codes make no sense in a file.
func newFileCore(fo FileOptions, encCfg zapcore.EncoderConfig, level zap.AtomicLevel) zapcore.Core {
	maxSize := fo.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	writer := &lumberjack.Logger{
		Filename:   fo.Filename,
		MaxSize:    maxSize,
		MaxBackups: fo.MaxBackups,
		MaxAge:     fo.MaxAgeDays,
		Compress:   fo.Compress,
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), level)
}

// MustNewDefaultLogger creates a production-ready logger quickly
func MustNewDefaultLogger() LogManager {
	logger, err := NewLogger(LoggerOptions{
		Level:        "info",
		Encoding:     "console",
		EnableCaller: true,
		EnableStack:  false,
	})
	if err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	return logger
}

// NewNop returns a LogManager that discards everything.
func NewNop() LogManager {
	return FromZap(zap.NewNop())
}

// FromZap wraps an existing zap logger. Level changes through SetLogLevel only
// affect loggers built by NewLogger; here they are accepted and ignored.
func FromZap(z *zap.Logger) LogManager {
	return &logger{
		Log:         z.Sugar(),
		atomicLevel: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}
