package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/remcomokveld/dagger/internal/cmd"
	"github.com/remcomokveld/dagger/internal/config"
	"github.com/remcomokveld/dagger/internal/exitcode"
)

func main() {
	if err := config.LoadDotEnv("."); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	// Create a context that listens for interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		// Check if error was due to context cancellation (e.g., Ctrl+C)
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			stop()
			exitcode.Exit(exitcode.Interrupted)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		exitcode.ExitWithError(err)
	}
}
