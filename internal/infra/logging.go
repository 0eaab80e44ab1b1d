package infra

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// Logger writes JSON log lines tagged with the service name and the request
// correlation id carried by the context.
type Logger struct {
	zl *zap.Logger
}

func NewLogger(out io.Writer, service string) *Logger {
	if out == nil {
		out = io.Discard
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     encodeUTCTime,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(out)), zap.DebugLevel)

	zl := zap.New(core)
	if service = strings.TrimSpace(service); service != "" {
		zl = zl.With(zap.String("service", service))
	}
	return &Logger{zl: zl}
}

func encodeUTCTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey, strings.TrimSpace(id))
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

func (l *Logger) Printf(ctx context.Context, format string, v ...any) {
	if l == nil {
		return
	}
	l.log(ctx, zapcore.InfoLevel, fmt.Sprintf(format, v...))
}

func (l *Logger) Println(ctx context.Context, v ...any) {
	if l == nil {
		return
	}
	l.log(ctx, zapcore.InfoLevel, strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *Logger) Warnf(ctx context.Context, format string, v ...any) {
	if l == nil {
		return
	}
	l.log(ctx, zapcore.WarnLevel, fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(ctx context.Context, format string, v ...any) {
	if l == nil {
		return
	}
	l.log(ctx, zapcore.ErrorLevel, fmt.Sprintf(format, v...))
}

// Fatalf logs at fatal level and exits the process.
func (l *Logger) Fatalf(ctx context.Context, format string, v ...any) {
	if l == nil {
		l = NewLogger(nil, "")
	}
	l.log(ctx, zapcore.FatalLevel, fmt.Sprintf(format, v...))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.zl.Sync()
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string) {
	var fields []zap.Field
	if traceID := CorrelationIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if ce := l.zl.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}
