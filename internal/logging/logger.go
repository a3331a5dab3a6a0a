package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.SugaredLogger

// Init configures the global JSON logger. Production gets sampled
// production defaults, everything else the development config.
func Init(appEnv string) error {
	var config zap.Config

	if appEnv == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Encoding = "json"

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	globalLogger = logger.Sugar()
	return nil
}

// GetLogger returns the global SugaredLogger for structured logging
func GetLogger() *zap.SugaredLogger {
	if globalLogger == nil {
		// Fallback logger if Init wasn't called
		logger, _ := zap.NewProduction()
		globalLogger = logger.Sugar()
	}
	return globalLogger
}

// Close flushes any buffered logs
func Close() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

func Info(message string, fields ...interface{}) {
	GetLogger().Infow(message, fields...)
}

func Debug(message string, fields ...interface{}) {
	GetLogger().Debugw(message, fields...)
}

func Warn(message string, fields ...interface{}) {
	GetLogger().Warnw(message, fields...)
}

func Error(message string, fields ...interface{}) {
	GetLogger().Errorw(message, fields...)
}

func Fatal(message string, fields ...interface{}) {
	GetLogger().Fatalw(message, fields...)
}

// WithJob returns a logger scoped to one scraping job.
func WithJob(jobID string, airlineCode string) *zap.SugaredLogger {
	return GetLogger().With(
		"job_id", jobID,
		"airline_code", airlineCode,
	)
}
