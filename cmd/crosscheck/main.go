// Command crosscheck validates golden and death crosses against subsequent prices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crosscheck/internal/cli"
	"crosscheck/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// config is loaded by the root command once --config is parsed
	root := cli.NewRootCmd(nil, logging.NewLogger())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
