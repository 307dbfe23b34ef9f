package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/preston-bernstein/gaffer-service/internal/client"
	"github.com/preston-bernstein/gaffer-service/internal/config"
	"github.com/preston-bernstein/gaffer-service/internal/console"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/session"
)

const (
	appName    = "gaffer"
	appVersion = "dev"
)

func main() {
	if os.Getenv("SKIP_CLIENT_RUN") == "1" {
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	squadFlag := flag.String("squad", cfg.SquadID, "squad id to open (defaults to the remembered one)")
	apiFlag := flag.String("api", cfg.APIURL, "squad API base URL")
	flag.Parse()

	// Log lines go to stderr so they do not interleave with the prompt.
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: appName,
		Version:     appVersion,
		Output:      os.Stderr,
	})

	squadID, err := resolveSquadID(*squadFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(client.Config{BaseURL: *apiFlag})
	s := session.New(squadID, api,
		session.WithSaveDelay(cfg.SaveDelay),
		session.WithLogger(logger),
		session.WithTrialEnforcement(true),
	)

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = connect(loadCtx, api, *apiFlag)
	if err == nil {
		err = s.Load(loadCtx)
		if err != nil {
			err = fmt.Errorf("open squad %s: %w", squadID, err)
		}
	}
	cancel()
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	return console.New(s, os.Stdin, os.Stdout).Run(ctx)
}

// connect checks the API answers its health check before anything is loaded.
func connect(ctx context.Context, api *client.Client, baseURL string) error {
	if err := api.Health(ctx); err != nil {
		return fmt.Errorf("squad API unreachable at %s: %w", baseURL, err)
	}
	return nil
}

func resolveSquadID(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return console.LoadOrCreateSquadID(filepath.Join(dir, appName), r)
}
