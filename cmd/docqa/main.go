// Command docqa is the command-line client for the docqa server.
//
// Usage:
//
//	docqa upload report.pdf
//	docqa query "what was the revenue in Q3?"
//	docqa documents list
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
