package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vines90/mcp-prompt-server/internal/config"
)

// New builds the process logger. Output goes to stderr, which keeps stdout
// free for the stdio transport, and is mirrored to a rotating file when
// cfg.LogFile is set. The returned closer flushes and closes that file.
func New(cfg config.Config) (*log.Logger, io.Closer) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}
	return NewWithWriter(out, cfg.ServerName, cfg.LogLevel), closer
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w io.Writer, prefix, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	SetLevel(logger, level)
	return logger
}

// SetLevel applies a textual level; unknown values mean info.
func SetLevel(logger *log.Logger, level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
