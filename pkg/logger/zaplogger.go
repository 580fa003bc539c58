package logger

import (
	"io"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin structured logger over zap. Fields are passed as a map so
// call sites stay short.
type Logger struct {
	appName string
	l       *zap.Logger
}

// New builds a JSON logger writing to the given writers (stdout when none).
func New(appName string, level zapcore.Level, writers ...io.Writer) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	cfg.TimeKey = "timestamp"

	var syncers []zapcore.WriteSyncer
	if len(writers) == 0 {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	for _, w := range writers {
		syncers = append(syncers, zapcore.AddSync(w))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.NewMultiWriteSyncer(syncers...),
		level,
	)

	return NewWithCore(appName, core)
}

// NewWithCore wraps an existing zap core. Tests pass an observer core here.
func NewWithCore(appName string, core zapcore.Core) *Logger {
	return &Logger{
		appName: appName,
		l:       zap.New(core),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithCore("nop", zapcore.NewNopCore())
}

// ParseLevel maps a textual level to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{
		appName: l.appName,
		l:       l.l.With(mapToZapFields(fields)...),
	}
}

func (l *Logger) Stop() error {
	return l.l.Sync()
}

func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.l.Debug(msg, l.fields(fields)...)
}

func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.l.Info(msg, l.fields(fields)...)
}

func (l *Logger) Warning(msg string, fields ...map[string]any) {
	l.l.Warn(msg, l.fields(fields)...)
}

// Error logs err as the message and attaches the caller and a stack trace.
func (l *Logger) Error(err error, fields ...map[string]any) {
	zf := l.fields(fields)
	zf = append(zf, zap.String("error", err.Error()), zap.Stack("stack"))
	l.l.Error(err.Error(), zf...)
}

func (l *Logger) Fatal(msg string, fields ...map[string]any) {
	l.l.Fatal(msg, l.fields(fields)...)
}

func (l *Logger) fields(fields []map[string]any) []zap.Field {
	file, line, funcName := getRuntimeParams()

	var zf []zap.Field
	if len(fields) > 0 {
		zf = mapToZapFields(fields[0])
	}
	return append(zf,
		zap.String("app_name", l.appName),
		zap.String("caller_file", file),
		zap.Int("caller_line", line),
		zap.String("caller_func", funcName),
	)
}

func mapToZapFields(data map[string]any) []zap.Field {
	zf := make([]zap.Field, 0, len(data))
	for k, v := range data {
		if err, ok := v.(error); ok {
			zf = append(zf, zap.NamedError(k, err))
			continue
		}
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

func getRuntimeParams() (file string, line int, funcName string) {
	// skip fields() and the public logging method
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "not_defined", 0, "not_defined"
	}
	return file, line, runtime.FuncForPC(pc).Name()
}
