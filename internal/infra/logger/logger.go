package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// output is the stream log lines go to; the terminal check inspects the same one.
const output = "stderr"

// New builds a production logger. Output is JSON unless stderr is a terminal.
func New(level string) (*zap.Logger, error) {
	return build(level, isTerminal(os.Stderr))
}

func build(level string, console bool) (*zap.Logger, error) {
	cfg, err := newConfig(level, console)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

func newConfig(level string, console bool) (zap.Config, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{output}
	if console {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg, nil
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
