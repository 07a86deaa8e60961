package main

// ============================================================================
// git-queue entry point
// All logic lives in internal/cli; main only wires signals and the exit code.
// ============================================================================

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChuLiYu/git-queue/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cli.BuildCLI().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
