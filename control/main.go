package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var (
	// Version is set at build time via ldflags
	// Example: go build -ldflags="-X main.Version=v1.2.3"
	Version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := NewRunner(RunnerOpts{}).Run(ctx, os.Args)
	stop()
	os.Exit(code)
}
