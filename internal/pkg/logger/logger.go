// Package logger adapts logrus to the ports.Logger contract.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger.
type Options struct {
	Level      string
	Verbose    bool
	Console    io.Writer
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger is a structured logger backed by logrus.
type Logger struct {
	log  *logrus.Logger
	file *lumberjack.Logger
}

// New builds a logger writing to the console and, when configured, to a rotating file.
func New(opts Options) *Logger {
	l := logrus.New()
	l.SetFormatter(&lineFormatter{})

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	logger := &Logger{log: l}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err == nil {
			logger.file = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    valueOr(opts.MaxSizeMB, 10),
				MaxBackups: valueOr(opts.MaxBackups, 3),
				MaxAge:     valueOr(opts.MaxAgeDays, 28),
			}
			l.SetOutput(io.MultiWriter(console, logger.file))
			return logger
		}
	}
	l.SetOutput(console)
	return logger
}

// NewStd creates a console-only logger; verbose enables debug output.
func NewStd(verbose bool) *Logger {
	return New(Options{Verbose: verbose})
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(Options{Console: io.Discard, Level: "panic"})
}

// Close flushes and closes the rotating file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log.WithFields(fields).Debug(msg)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log.WithFields(fields).Info(msg)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log.WithFields(fields).Warn(msg)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	entry := l.log.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

// lineFormatter renders: [2025-12-23 20:14:04] [warn ] message | key=value, key=value
type lineFormatter struct{}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	fmt.Fprintf(buffer, "[%s] [%-5s] %s", entry.Time.Format("2006-01-02 15:04:05"), level, strings.TrimRight(entry.Message, "\r\n"))

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, entry.Data[k]))
		}
		buffer.WriteString(" | ")
		buffer.WriteString(strings.Join(parts, ", "))
	}
	buffer.WriteByte('\n')
	return buffer.Bytes(), nil
}

// MaskSecret keeps the first and last four characters of a credential.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", 8) + secret[len(secret)-4:]
}

func valueOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
