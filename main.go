// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"featidx/cmd"
	applog "featidx/internal/log"
	"featidx/pkg/build"
)

func main() {
	// Unstamped development builds run with dev build info.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
