// Package main provides lazygrid, a command that pages through a SQL table
// the way a lazily loaded grid does.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	exitCode := run(ctx, os.Stdout, os.Stderr, os.Args[1:])

	stop()
	os.Exit(exitCode)
}
