// Package app assembles the components from a Config. Every entry point
// builds the same graph through Build.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/delivery"
	"github.com/dharsanguruparan/auctionlist/internal/document"
	"github.com/dharsanguruparan/auctionlist/internal/history"
	"github.com/dharsanguruparan/auctionlist/internal/pipeline"
	"github.com/dharsanguruparan/auctionlist/internal/salvato"
	"github.com/dharsanguruparan/auctionlist/internal/server"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Renderer *document.Renderer
	Strategy delivery.Strategy
	Runner   *pipeline.Runner
	History  history.Recorder

	closers []func()
}

// Options overrides collaborators that are otherwise built from the config.
type Options struct {
	Rasterizer document.Rasterizer
	HTTPClient *http.Client
}

// Build wires everything. It fails when the selected delivery strategy is
// missing settings, so a misconfigured deployment is caught at startup.
func Build(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Rasterizer == nil {
		opts.Rasterizer = &document.ChromeRasterizer{ExecPath: cfg.Render.ChromePath, ImageWait: cfg.Render.ImageWait}
	}

	a.Renderer = NewRenderer(cfg, opts.Rasterizer, log)
	strategy, err := delivery.New(ctx, cfg, delivery.Deps{Renderer: a.Renderer, HTTPClient: opts.HTTPClient, Log: log})
	if err != nil {
		return nil, fmt.Errorf("init delivery: %w", err)
	}
	a.Strategy = strategy

	if cfg.DatabaseURL != "" {
		pool, err := history.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := history.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.History = history.NewPostgres(pool)
	} else {
		a.History = history.NewMemory()
	}

	source := salvato.New(cfg.Salvato, opts.HTTPClient, log)
	a.Runner = pipeline.New(source, strategy, pipeline.Options{
		Workers:  cfg.Render.Workers,
		Timeouts: cfg.Timeouts,
		Recorder: a.History,
	}, log)
	log.Infow("app ready", "delivery", strategy.Name(), "storage", cfg.Storage.Backend, "workers", cfg.Render.Workers, "history", cfg.DatabaseURL != "")
	return a, nil
}

// NewRenderer builds the document renderer from the render settings.
func NewRenderer(cfg *config.Config, raster document.Rasterizer, log *zap.SugaredLogger) *document.Renderer {
	return document.NewRenderer(document.Options{
		TemplatePath: cfg.Render.TemplatePath,
		OutputDir:    cfg.Render.OutputDir,
		Timeout:      cfg.Timeouts.Render,
		Rows:         document.RowOptions{VehicleDetailsURL: cfg.Salvato.VehicleDetailsURL},
	}, raster, log)
}

// Server returns the HTTP server for the app.
func (a *App) Server() *server.Server {
	return server.New(a.Config.Address, a.Runner, a.History, a.Log)
}

// Close releases held resources.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
