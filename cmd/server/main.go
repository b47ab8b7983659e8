// Command server runs the auction list generator as a long-running HTTP
// service. It reads local.env when present, which is how it is run locally.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dharsanguruparan/auctionlist/internal/app"
	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/logger"
)

func main() {
	if err := godotenv.Load("local.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load local.env: %v", err)
	}
	cfg, err := config.Load(os.Getenv("AUCTIONLIST_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, zlog, app.Options{})
	if err != nil {
		zlog.Fatalw("init app", "error", err)
	}
	defer a.Close()

	if err := a.Server().Serve(ctx); err != nil {
		zlog.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}
