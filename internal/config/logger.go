package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logTimeFormat = "2006-01-02 15:04:05"

// InitLogger 按配置初始化全局 logrus
func InitLogger(cfg *Config) error {
	if err := ConfigureLogger(logrus.StandardLogger(), cfg.Log); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	}).Info("logger initialized")
	return nil
}

// ConfigureLogger applies level, format and output to l. Services receive
// the configured instance through their constructors.
func ConfigureLogger(l *logrus.Logger, lc LogConfig) error {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		l.Warnf("invalid log level %q, using info", lc.Level)
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(logFormatter(lc.Format))

	out, err := logOutput(lc)
	if err != nil {
		return err
	}
	l.SetOutput(out)
	return nil
}

func logFormatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "text") {
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: logTimeFormat}
	}
	return &logrus.JSONFormatter{TimestampFormat: logTimeFormat}
}

func logOutput(lc LogConfig) (io.Writer, error) {
	mode := strings.ToLower(lc.Output)
	if mode != "file" && mode != "both" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(lc.FilePath), 0755); err != nil {
		return nil, err
	}
	rotate := &lumberjack.Logger{
		Filename:   lc.FilePath,
		MaxSize:    lc.MaxSize, // MB
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge, // days
		Compress:   lc.Compress,
		LocalTime:  true,
	}
	if mode == "both" {
		return io.MultiWriter(os.Stdout, rotate), nil
	}
	return rotate, nil
}
