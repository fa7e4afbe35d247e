// Command cdbg places snapshots and logpoints on services registered with
// the cloud debugger, and serves the debugger to MCP clients and IDEs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ctagard/cdbg/internal/cli"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewApp().Run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdbg: %v\n", err)
		os.Exit(1)
	}
}
