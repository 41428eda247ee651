package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/evanw/esmloader/internal/exitcode"
)

// Set with -ldflags "-X main.esmloaderVersion=..."
var esmloaderVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := execute(ctx, newRootCommand(os.Stdin), os.Args[1:])
	stop()
	exitcode.Exit(err)
}
