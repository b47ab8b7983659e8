package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/auctionlist/internal/app"
	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/document"
	"github.com/dharsanguruparan/auctionlist/internal/logger"
	"github.com/dharsanguruparan/auctionlist/internal/model"
)

var (
	configFile string
	envFile    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "auctionlist: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auctionlist",
		Short: "Salvato auction list generator",
		Long: `auctionlist fetches upcoming and running Salvato auctions, renders one printable
list per auction and delivers it to storage or to the Plumsail workflow.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file; environment variables override it")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "local.env", "dotenv file loaded before reading configuration")
	cmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newRenderCmd(),
		newInspectCmd(),
	)
	return cmd
}

func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, zlog, app.Options{})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the auction list HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Server().Serve(cmd.Context())
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Generate and deliver every auction list once, printing the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			summary, err := a.Runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newRenderCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "render <payload.json>",
		Short: "Render a saved auction payload into a PDF without contacting any API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configFile)
			if err != nil {
				return err
			}
			if outDir != "" {
				cfg.Render.OutputDir = outDir
			}
			payload, err := readPayload(args[0])
			if err != nil {
				return err
			}
			zlog, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			raster := &document.ChromeRasterizer{ExecPath: cfg.Render.ChromePath, ImageWait: cfg.Render.ImageWait}
			doc, err := app.NewRenderer(cfg, raster, zlog).Render(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pages)\n", doc.Path, doc.Info.Pages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for the PDF (defaults to RENDER_OUTPUT_DIR or the temp dir)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Print the page count of a rendered list, optionally with its text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := document.Inspect(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages, %d bytes\n", filepath.Base(args[0]), info.Pages, info.Size)
			if !text {
				return nil
			}
			content, err := document.ExtractText(data)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			return err
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "also print the extracted text")
	return cmd
}

// readPayload accepts either a single payload object or an array of lots.
func readPayload(path string) (model.AuctionPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.AuctionPayload{}, err
	}
	var payload model.AuctionPayload
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Lots == nil {
			payload.Lots = []model.FormattedLot{}
		}
		return payload, nil
	}
	var lots []model.FormattedLot
	if err := json.Unmarshal(data, &lots); err != nil {
		return model.AuctionPayload{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return model.AuctionPayload{Lots: lots}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

