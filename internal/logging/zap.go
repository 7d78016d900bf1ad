package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	base  *zap.Logger
	level Level
}

// NewZapWriter builds a JSON zap logger writing to out.
func NewZapWriter(out io.Writer, level Level) Logger {
	if out == nil {
		out = os.Stdout
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(out),
		zap.NewAtomicLevelAt(zapLevel(level)),
	)
	return &zapLogger{base: zap.New(core), level: level}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.base.Debug(msg, zapFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.base.Info(msg, zapFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.base.Warn(msg, zapFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.base.Error(msg, zapFields(fields)...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{base: l.base.With(zapFields(fields)...), level: l.level}
}

func (l *zapLogger) Enabled(level Level) bool {
	return level >= l.level
}

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if err, ok := field.Value.(error); ok {
			out = append(out, zap.NamedError(field.Key, err))
			continue
		}
		out = append(out, zap.Any(field.Key, field.Value))
	}
	return out
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
