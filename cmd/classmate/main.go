// Command classmate syncs classroom courses and answers questions about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/classmate/internal/adapters/driving/cli"
	"github.com/custodia-labs/classmate/internal/app"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetRuntimeFactory(app.Build)

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
