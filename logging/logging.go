// Package logging gives the engine a context-first, structured logging
// call surface on top of go.uber.org/zap, mirroring the call style seen at
// every `log.Info(ctx, msg, logging.NewKV(...))` / `log.ErrorE(ctx, msg,
// err)` site in the teacher's net package.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KV is a single structured logging field.
type KV struct {
	Key   string
	Value any
}

// NewKV constructs a KV pair.
func NewKV(key string, value any) KV {
	return KV{Key: key, Value: value}
}

func fields(kvs []KV) []zap.Field {
	out := make([]zap.Field, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, zap.Any(kv.Key, kv.Value))
	}
	return out
}

// Logger is the engine's structured logger. The zero value is not usable;
// use New().
type Logger struct {
	z *zap.Logger
}

var defaultLogger = New(Config{})

// Config controls how a Logger's zap core is built.
type Config struct {
	// Level sets the minimum enabled level. The zero value is
	// zapcore.InfoLevel, so debug lines are dropped unless Level is set
	// to zapcore.DebugLevel.
	Level zapcore.Level
	// Production selects the JSON production encoder instead of the
	// human-readable development console encoder.
	Production bool
}

// New builds a Logger from Config.
func New(cfg Config) *Logger {
	var zcfg zap.Config
	if cfg.Production {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Level)
	z, err := zcfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panic; logging must
		// never be why the engine fails to start.
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// SetDefault swaps the package-level default logger, letting a host
// application redirect the engine's output.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func ctxFields(ctx context.Context, kvs []KV) []zap.Field {
	f := fields(kvs)
	if wid, ok := ctx.Value(workspaceIDKey{}).(string); ok && wid != "" {
		f = append(f, zap.String("workspaceId", wid))
	}
	return f
}

type workspaceIDKey struct{}

// WithWorkspaceID returns a context that stamps every log line emitted
// through it with the given workspace id.
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceIDKey{}, workspaceID)
}

func Debug(ctx context.Context, msg string, kvs ...KV) { defaultLogger.Debug(ctx, msg, kvs...) }
func Info(ctx context.Context, msg string, kvs ...KV)  { defaultLogger.Info(ctx, msg, kvs...) }
func Warn(ctx context.Context, msg string, kvs ...KV)  { defaultLogger.Warn(ctx, msg, kvs...) }
func Error(ctx context.Context, msg string, kvs ...KV) { defaultLogger.Error(ctx, msg, kvs...) }

// ErrorE logs msg at error level with err attached as a structured field,
// the pattern the teacher uses at every failure point that must not
// propagate (spec §7 item 3: I/O failures are logged, not thrown).
func ErrorE(ctx context.Context, msg string, err error, kvs ...KV) {
	defaultLogger.ErrorE(ctx, msg, err, kvs...)
}

// FeedbackInfo logs a user-facing progress notice, kept distinct from
// Debug/Info so a host application can route it to a different sink (e.g.
// a CLI's stdout) without touching diagnostic logs.
func FeedbackInfo(ctx context.Context, msg string, kvs ...KV) {
	defaultLogger.FeedbackInfo(ctx, msg, kvs...)
}

func (l *Logger) Debug(ctx context.Context, msg string, kvs ...KV) {
	l.z.Debug(msg, ctxFields(ctx, kvs)...)
}

func (l *Logger) Info(ctx context.Context, msg string, kvs ...KV) {
	l.z.Info(msg, ctxFields(ctx, kvs)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, kvs ...KV) {
	l.z.Warn(msg, ctxFields(ctx, kvs)...)
}

func (l *Logger) Error(ctx context.Context, msg string, kvs ...KV) {
	l.z.Error(msg, ctxFields(ctx, kvs)...)
}

func (l *Logger) ErrorE(ctx context.Context, msg string, err error, kvs ...KV) {
	f := ctxFields(ctx, kvs)
	f = append(f, zap.Error(err))
	l.z.Error(msg, f...)
}

func (l *Logger) FeedbackInfo(ctx context.Context, msg string, kvs ...KV) {
	l.z.Sugar().Infow(msg, toSugarArgs(ctxFields(ctx, kvs))...)
}

func toSugarArgs(f []zap.Field) []any {
	out := make([]any, 0, len(f)*2)
	for _, field := range f {
		out = append(out, field.Key, field)
	}
	return out
}

// Sync flushes any buffered log entries. Call on process shutdown.
func Sync() error {
	return defaultLogger.z.Sync()
}
