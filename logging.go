package loadgen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type correlationIdType int

const (
	runIdKey correlationIdType = iota
	vuIdKey
)

const (
	defaultLogLevel    = "info"
	defaultLogEncoding = "console"
)

type Logger struct {
	*zap.SugaredLogger
}

var log = setupLogger(defaultLogEncoding, defaultLogLevel)

// WithRunId returns a context which knows its run ID
func WithRunId(ctx context.Context, runId string) context.Context {
	return context.WithValue(ctx, runIdKey, runId)
}

// WithVUId returns a context which knows the virtual user it was created for
func WithVUId(ctx context.Context, vu int) context.Context {
	return context.WithValue(ctx, vuIdKey, vu)
}

// FromCtx returns a logger with as much context as possible
func (m *Logger) FromCtx(ctx context.Context) *Logger {
	newLogger := m
	if ctx != nil {
		if runId, ok := ctx.Value(runIdKey).(string); ok {
			newLogger = &Logger{newLogger.With(zap.String("runId", runId))}
		}
		if vu, ok := ctx.Value(vuIdKey).(int); ok {
			newLogger = &Logger{newLogger.With(zap.Int("vu", vu))}
		}
	}
	return newLogger
}

func setupLogger(encoding string, level string) *Logger {
	if encoding == "" {
		encoding = defaultLogEncoding
	}
	if level == "" {
		level = defaultLogLevel
	}
	rawJSON := []byte(fmt.Sprintf(`{
	  "level": "%s",
	  "encoding": "%s",
	  "outputPaths": ["stdout"],
	  "errorOutputPaths": ["stderr"],
	  "encoderConfig": {
	    "messageKey": "message",
	    "levelKey": "level",
	    "levelEncoder": "uppercase",
	    "timeKey": "time",
	    "timeEncoder": "ISO8601",
	    "callerKey": "caller",
	    "callerEncoder": "short"
	  }
	}`, level, encoding))

	var cfg zap.Config
	if err := json.Unmarshal(rawJSON, &cfg); err != nil {
		panic(err)
	}
	if encoding == defaultLogEncoding {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{logger.Sugar()}
}

// NewLogger builds the package logger from logging.level and logging.encoding
func NewLogger() *Logger {
	lvl := viper.GetString("logging.level")
	encoding := viper.GetString("logging.encoding")
	log = setupLogger(encoding, lvl)
	return log
}
