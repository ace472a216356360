// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

// Package logging provides the simulator's structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the logging level
type Level logrus.Level

// Logging levels
const (
	DebugLevel Level = Level(logrus.DebugLevel)
	InfoLevel  Level = Level(logrus.InfoLevel)
	WarnLevel  Level = Level(logrus.WarnLevel)
	ErrorLevel Level = Level(logrus.ErrorLevel)
)

var logger = logrus.New()

func init() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
}

// Config contains the logging configuration.
type Config struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is "text" (the default) or "json".
	Format string `yaml:"format"`

	// Dir and File name a log file, written in addition to stderr.
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `yaml:"maxAge"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// ParseLevel parses a level name.
func ParseLevel(name string) (Level, error) {
	l, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return Level(l), nil
}

// Configure applies the given configuration.
func Configure(c Config) (err error) {
	if c.Level != "" {
		var l Level
		if l, err = ParseLevel(c.Level); err != nil {
			return
		}
		SetLevel(l)
	}
	switch c.Format {
	case "", "text":
		SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	if c.File != "" {
		err = EnableFileLogging(c.Dir, c.File, c.MaxSize, c.MaxBackups,
			c.MaxAge)
	}
	return
}

// SetLevel sets the logging level
func SetLevel(level Level) {
	logger.SetLevel(logrus.Level(level))
}

// IsDebug returns true if debug messages are logged.
func IsDebug() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}

// SetFormatter sets the log formatter
func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// SetOutput sets the log output
func SetOutput(output io.Writer) {
	logger.SetOutput(output)
}

// EnableFileLogging enables logging to a file with rotation
func EnableFileLogging(logDir, logFile string, maxSize, maxBackups,
	maxAge int) error {
	if logDir == "" {
		logDir = "."
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	rotateLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFile),
		MaxSize:    maxSize,    // megabytes
		MaxBackups: maxBackups, // number of backups
		MaxAge:     maxAge,     // days
		Compress:   true,       // compress backups
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, rotateLogger))
	return nil
}

// WithFields creates a new log entry with fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Debugf logs a debug message
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Infof logs an info message
func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

// Warnf logs a warning message
func Warnf(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Errorf logs an error message
func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}

// DebugWithFields logs a debug message with fields
func DebugWithFields(fields logrus.Fields, format string, args ...any) {
	logger.WithFields(fields).Debugf(format, args...)
}

// InfoWithFields logs an info message with fields
func InfoWithFields(fields logrus.Fields, format string, args ...any) {
	logger.WithFields(fields).Infof(format, args...)
}

// WarnWithFields logs a warning message with fields
func WarnWithFields(fields logrus.Fields, format string, args ...any) {
	logger.WithFields(fields).Warnf(format, args...)
}
