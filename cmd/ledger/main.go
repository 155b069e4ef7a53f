package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"utility-ledger/cmd/ledger/cmd"

	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cmd.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
