// Package observability holds the process-wide CLI logger.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by CLI commands. It is a no-op logger until
// InitCLILogger is called.
var CLILogger = zap.NewNop()

var cliLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// InitCLILogger configures CLILogger to write human readable lines to
// stderr. verbose lowers the level to debug.
func InitCLILogger(name string, verbose bool) {
	if verbose {
		cliLevel.SetLevel(zap.DebugLevel)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		cliLevel,
	)
	CLILogger = zap.New(core).Named(name)
}

// InitStructuredLogger configures CLILogger to emit JSON lines to stderr,
// for runs driven by other tooling.
func InitStructuredLogger(name string, verbose bool) {
	if verbose {
		cliLevel.SetLevel(zap.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		cliLevel,
	)
	CLILogger = zap.New(core).Named(name)
}

// SetLevel changes the CLI log level ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		return nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cliLevel.SetLevel(l)
	return nil
}

// Level returns the current CLI log level.
func Level() zapcore.Level {
	return cliLevel.Level()
}
