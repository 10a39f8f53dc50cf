package logging

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LoggerFactory lets the embedding process supply its own logger wiring.
type LoggerFactory interface {
	CreateLogger(ctx context.Context) Logger
}

var (
	loggerFactoryMu sync.RWMutex
	loggerFactory   LoggerFactory

	defaultsMu    sync.RWMutex
	defaultLevel  = logrus.InfoLevel
	defaultFormat = "text"
)

func SetLoggerFactory(factory LoggerFactory) {
	loggerFactoryMu.Lock()
	defer loggerFactoryMu.Unlock()

	loggerFactory = factory
}

func GetLoggerFactory() LoggerFactory {
	loggerFactoryMu.RLock()
	defer loggerFactoryMu.RUnlock()

	return loggerFactory
}

// Configure sets the level and format used when no factory is installed.
// Unparseable levels fall back to info.
func Configure(level string, format string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaultLevel = parsed
	if format != "" {
		defaultFormat = format
	}
}

func configuredDefaults() (logrus.Level, string) {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return defaultLevel, defaultFormat
}
