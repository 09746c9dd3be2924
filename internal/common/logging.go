package common

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = log.New(os.Stderr, "[segyfix] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// AttachLogFile mirrors log output to a rotating file in addition to stderr.
func AttachLogFile(path string, maxSizeMB, maxBackups, maxAgeDays int) {
	if path == "" {
		return
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
}
