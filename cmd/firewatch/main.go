package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/firewatchhq/firewatch/internal/fwerr"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := fwerr.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", hint)
		}
		os.Exit(exitCode(err))
	}
}

func run() error {
	// Cancel everything on SIGINT/SIGTERM so syncs stop paging and
	// subprocesses are killed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	defer a.shutdown()

	return newRootCmd(a).ExecuteContext(ctx)
}

// exitCode maps the error taxonomy to the process exit code: 0 success,
// 2 partial batch failure, 1 everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var partial *fwerr.PartialError
	if errors.As(err, &partial) {
		return 2
	}
	return 1
}
