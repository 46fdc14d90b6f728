package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger wraps zap for structured + flexible logging
type logger struct {
	Log         *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
}

func (l *logger) Debug(args ...any) { l.Log.Debug(args...) }
func (l *logger) Info(args ...any)  { l.Log.Info(args...) }
func (l *logger) Warn(args ...any)  { l.Log.Warn(args...) }
func (l *logger) Error(args ...any) { l.Log.Error(args...) }

func (l *logger) DebugF(format string, args ...any) { l.logf(nil, zapcore.DebugLevel, format, args) }
func (l *logger) InfoF(format string, args ...any)  { l.logf(nil, zapcore.InfoLevel, format, args) }
func (l *logger) WarnF(format string, args ...any)  { l.logf(nil, zapcore.WarnLevel, format, args) }
func (l *logger) ErrorF(format string, args ...any) { l.logf(nil, zapcore.ErrorLevel, format, args) }

func (l *logger) DebugFCtx(ctx context.Context, format string, args ...any) {
	l.logf(ctx, zapcore.DebugLevel, format, args)
}
func (l *logger) InfoFCtx(ctx context.Context, format string, args ...any) {
	l.logf(ctx, zapcore.InfoLevel, format, args)
}
func (l *logger) WarnFCtx(ctx context.Context, format string, args ...any) {
	l.logf(ctx, zapcore.WarnLevel, format, args)
}
func (l *logger) ErrorFCtx(ctx context.Context, format string, args ...any) {
	l.logf(ctx, zapcore.ErrorLevel, format, args)
}

// logf skips formatting entirely when the level is disabled; dev-mode request
// dumps can be large.
func (l *logger) logf(ctx context.Context, lvl zapcore.Level, format string, args []any) {
	base := l.Log.Desugar()
	if !base.Core().Enabled(lvl) {
		return
	}
	s := l.Log.WithOptions(zap.AddCallerSkip(2))
	if fields := withContext(ctx); len(fields) > 0 {
		s = s.With(fields...)
	}
	s.Logf(lvl, format, args...)
}

func (l *logger) With(fields ...any) LogManager {
	return &logger{
		Log:         l.Log.With(fields...),
		atomicLevel: l.atomicLevel,
	}
}

func (l *logger) Sync() error {
	return l.Log.Sync()
}

func (l *logger) SetLogLevel(level string) error {
	return l.atomicLevel.UnmarshalText([]byte(level))
}
