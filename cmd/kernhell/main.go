package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kernhell/kernhell-go/internal/infrastructure/cli"
)

func main() {
	// A missing .env is normal; keys usually live in ~/.kernhell/keys.json.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{Verbose: isVerbose()}

	root, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		var failed *cli.FailedFilesError
		if !errors.As(err, &failed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("KERNHELL_DEBUG"), "1") || strings.EqualFold(os.Getenv("KERNHELL_DEBUG"), "true")
}
