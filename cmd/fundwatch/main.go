// Package main is the fundwatch command line entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oljefondvakt/fundwatch/cmd/fundwatch/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.RootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
