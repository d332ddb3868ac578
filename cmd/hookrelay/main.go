package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hookrelay/internal/app"
)

func main() {
	var (
		cfgPath string
		daemon  bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.BoolVar(&daemon, "daemon", false, "run on the configured schedule instead of one cycle")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.EnvFromProcess())
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if daemon {
		if err := a.RunDaemon(ctx); err != nil {
			fmt.Println("fatal daemon:", err)
			os.Exit(1)
		}
		return
	}

	// One-shot: a single polling cycle, then exit. Partial failures are
	// logged inside the cycle; only a missing account list is fatal.
	if err := a.RunOnce(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
