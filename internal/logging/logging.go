// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides daily JSON-line log files for the lumen backend.
//
// Log lines are written with zap to <dataDir>/logs/lumen-YYYY-MM-DD.log; the
// file rolls over when the date changes and files older than the retention
// window are removed on startup.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured log lines to a daily file.
type Logger struct {
	mu sync.Mutex

	dir         string
	currentDate string
	file        *os.File
	zl          *zap.Logger
}

// New creates a Logger writing under dir/logs. The directory is created if
// missing.
func New(dataDir string) (*Logger, error) {
	dir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &Logger{dir: dir}
	if err := l.rotate(time.Now()); err != nil {
		return nil, err
	}
	return l, nil
}

// encoderConfig matches the original line shape: ts, level, message, fields.
func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// rotate opens the file for the given date, closing the previous one.
// Caller must hold mu or be the constructor.
func (l *Logger) rotate(now time.Time) error {
	date := now.Format("2006-01-02")
	if date == l.currentDate && l.zl != nil {
		return nil
	}

	path := filepath.Join(l.dir, "lumen-"+date+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(f),
		zapcore.InfoLevel,
	)
	zl := zap.New(core)

	if l.zl != nil {
		l.zl.Sync()
	}
	if l.file != nil {
		l.file.Close()
	}

	l.currentDate = date
	l.file = f
	l.zl = zl
	return nil
}

// logger returns the zap logger for the current date, rotating if the date
// changed since the last write.
func (l *Logger) logger() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.rotate(time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
	}
	return l.zl
}

// Info writes an INFO line.
func (l *Logger) Info(message string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.logger().Info(message, fields...)
}

// Warn writes a WARN line.
func (l *Logger) Warn(message string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.logger().Warn(message, fields...)
}

// Error writes an ERROR line.
func (l *Logger) Error(message string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.logger().Error(message, fields...)
}

// Dir returns the log directory.
func (l *Logger) Dir() string {
	return l.dir
}

// Close flushes and closes the current log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.zl != nil {
		l.zl.Sync()
	}
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.zl = nil
		return err
	}
	return nil
}

// RemoveOldLogs deletes daily log files older than maxDays. Files that do not
// match the lumen-*.log pattern are left alone.
func RemoveOldLogs(dir string, maxDays int) error {
	if maxDays <= 0 {
		maxDays = 90
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	limit := time.Duration(maxDays) * 24 * time.Hour
	now := time.Now()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "lumen-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > limit {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}
