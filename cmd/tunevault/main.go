package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	// Ctrl-C during a long command is not worth an error line.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tunevault: %v\n", err)
	}
	os.Exit(1)
}
