package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the global logrus logger from config. When a log file is
// configured, output goes to stdout and a size-rotated file.
func Init(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
}
