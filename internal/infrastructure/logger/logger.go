package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trackimpact/support-api/internal/config"
)

// New builds the service logger from the log level, format and output settings.
func New(cfg *config.Config) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	out, err := output(cfg)
	if err != nil {
		return zerolog.Logger{}, err
	}

	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger(), nil
}

func output(cfg *config.Config) (io.Writer, error) {
	var stdout io.Writer
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		stdout = os.Stdout
	case "console":
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	// rotated files always hold JSON lines
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}

	switch cfg.LogOutput {
	case "file":
		return file, nil
	case "both":
		return zerolog.MultiLevelWriter(stdout, file), nil
	default:
		return stdout, nil
	}
}
