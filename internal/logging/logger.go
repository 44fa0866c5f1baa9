package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "trustrace-api"

// ParseLevel maps a configured level name to a zap level. An empty name means info.
func ParseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	parsed, err := zapcore.ParseLevel(normalized)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return parsed, nil
}

// NewLogger returns a zap logger configured for structured production logging.
func NewLogger(level string) (*zap.Logger, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.InitialFields = map[string]interface{}{"service": serviceName}

	return cfg.Build()
}
