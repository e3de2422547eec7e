package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	ServiceName string
	Level       string
	Console     bool
	// Extra 額外的輸出，例如 KafkaWriter
	Extra []io.Writer
}

// New 建立帶 service 欄位的 logger
// level 解析失敗時使用 info
func New(opts Options) *zerolog.Logger {
	var out io.Writer = os.Stdout
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if len(opts.Extra) > 0 {
		writers := append([]io.Writer{out}, opts.Extra...)
		out = zerolog.MultiLevelWriter(writers...)
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &l
}

// Nop 測試用
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
