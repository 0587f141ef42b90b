// Command royaltyctl runs the royalty pipeline from the command line: schema
// migrations, imports, statements, exports and maintenance. Jobs triggered by
// a command run to completion before it exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Overload()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCommand()
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
