package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/regress/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	code := cli.GetExitCode(err)

	// Test failures are already reported in the summary.
	var exitErr *cli.ExitError
	if err != nil && !(errors.As(err, &exitErr) && code == cli.ExitFailure) {
		fmt.Fprintf(os.Stderr, "regress: %v\n", err)
	}

	stop()
	os.Exit(code)
}
