// Package main is the entrypoint for the chat client.
// It joins the chat server at API_URL and runs a line-oriented session on
// the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/realtime-chat-client/internal/client"
	"github.com/aelexs/realtime-chat-client/internal/config"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var username string
	if len(os.Args) > 1 {
		username = os.Args[1]
	}

	return client.Run(ctx, client.Params{Username: username})
}
