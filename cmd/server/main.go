package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/preston-bernstein/gaffer-service/internal/config"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/server"
)

const (
	appName    = "gaffer-service"
	appVersion = "dev"
)

const (
	exitOK     = 0
	exitSetup  = 1
	exitConfig = 2
)

func main() {
	if os.Getenv("SKIP_SERVER_RUN") == "1" {
		return
	}

	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if code := run(os.Stderr); code != exitOK {
		os.Exit(code)
	}
}

func run(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: appName,
		Version:     appVersion,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logging.Error(logger, "server setup failed", err)
		return exitSetup
	}
	srv.Run(ctx, stop)
	return exitOK
}
