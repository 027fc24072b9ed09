package logger

import (
	"io"
	"os"
	"time"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure sets the global zerolog level and output from config.
// The returned closer releases the log file, if any.
func Configure(cfg *config.Sketch) (io.Closer, error) {
	logs := cfg.Sketch.Logs

	level := zerolog.InfoLevel
	if logs.Level != "" {
		parsed, err := zerolog.ParseLevel(logs.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	switch {
	case logs.File != "":
		file := &lumberjack.Logger{
			Filename:   logs.File,
			MaxSize:    logs.MaxSizeMB,
			MaxBackups: logs.MaxBackups,
			Compress:   true,
		}
		out, closer = file, file
	case cfg.IsDev():
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
