package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Closer interface {
	Close() error
}

// FileLogger returns a JSON logger writing to stderr and to a size-rotated
// file at logPath.
func FileLogger(level logrus.Level, logPath string) (Closer, *logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(os.Stderr, file))
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return file, logger, nil
}

// ConsoleLogger writes text logs to stderr, keeping stdout free for
// machine-readable output.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// Nop discards everything.
func Nop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
