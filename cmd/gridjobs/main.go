package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/3leaps/gridjobs/internal/cmd"
	errwrap "github.com/3leaps/gridjobs/internal/errors"
	"github.com/3leaps/gridjobs/internal/observability"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err == nil {
		return
	}

	env := errwrap.Envelope(err)
	observability.CLILogger.Error("Command failed",
		zap.String("code", errwrap.Code(err)),
		zap.Error(err))
	if b, merr := json.Marshal(env); merr == nil {
		_, _ = fmt.Fprintln(os.Stderr, string(b))
	} else {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(errwrap.ExitCode(err))
}
