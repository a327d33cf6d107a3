package common

import (
	"context"
	"os"

	"github.com/go-logr/zapr"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*otelzap.Logger
}

func (log *Logger) Ctx(ctx context.Context) otelzap.LoggerWithCtx {
	return log.Logger.Ctx(ctx)
}

func (log *Logger) OtelZapLogger() *otelzap.Logger {
	return log.Logger
}

func (log *Logger) ZapLogger() *zap.Logger {
	return log.Logger.Logger
}

// With returns a child logger carrying the given fields on every entry.
func (log *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: otelzap.New(log.ZapLogger().With(fields...)),
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{
		Logger: otelzap.New(zap.NewNop()),
	}
}

// NewLogger builds the process logger. Entries go to stderr because stdout
// can be a copy destination.
func NewLogger(cfg LogConfig) (*Logger, error) {
	zapConf := zap.NewProductionEncoderConfig()
	zapConf.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	var defaultLogLevel zapcore.Level
	if cfg.Debug() {
		zapConf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(zapConf)
		defaultLogLevel = zapcore.DebugLevel
	} else {
		encoder = zapcore.NewJSONEncoder(zapConf)
		defaultLogLevel = zapcore.WarnLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), defaultLogLevel),
	}
	core := zapcore.NewTee(cores...)

	zapLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", cfg.ServiceName()))

	var options []otelzap.Option
	options = append(options, otelzap.WithMinLevel(defaultLogLevel))

	logger := &Logger{
		Logger: otelzap.New(zapLogger, options...),
	}
	zap.ReplaceGlobals(logger.ZapLogger())
	otelzap.ReplaceGlobals(logger.OtelZapLogger())

	otel.SetLogger(zapr.NewLogger(logger.ZapLogger()))

	return logger, nil
}
