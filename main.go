// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ttbt-io/pitchdeck/backend"
	"github.com/ttbt-io/pitchdeck/backend/deck"
	"github.com/ttbt-io/pitchdeck/backend/pdfexport"
	"github.com/ttbt-io/pitchdeck/backend/preview"
)

const defaultConfigFile = "pitchdeck.toml"

var (
	configPath string
	debugMode  bool
	variant    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "pitchdeck",
	Short:        "Serve an investor pitch deck and export it to PDF",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if debugMode {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the deck to a PDF file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Play the deck's count-up stats in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the embedded deck variants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range deck.Variants() {
			d, err := deck.Load(name)
			if err != nil {
				return err
			}
			marker := " "
			if name == deck.DefaultVariant {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s (%d slides)\n", marker, name, d.Name, d.SlideCount())
		}
		return nil
	},
}

var (
	serveAddr   string
	exportOut   string
	exportAddr  string
	previewOnce bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the TOML configuration file (default "+defaultConfigFile+" if present)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&variant, "variant", "", "Deck variant to serve")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "The TCP address to listen to")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default: the deck's export name)")
	exportCmd.Flags().StringVar(&exportAddr, "addr", "127.0.0.1:0", "Address of the temporary server the browser renders from")
	previewCmd.Flags().BoolVar(&previewOnce, "once", false, "Exit when every stat has settled")

	rootCmd.AddCommand(serveCmd, exportCmd, previewCmd, variantsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*backend.Config, error) {
	path := configPath
	if path == "" {
		path = defaultConfigFile
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := backend.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if variant != "" {
		cfg.Deck.Variant = variant
	}
	return cfg, nil
}

func loadDeck(cfg *backend.Config) (*deck.Deck, error) {
	if cfg.Deck.File != "" {
		return deck.LoadFile(cfg.Deck.File)
	}
	d, err := deck.Load(cfg.Deck.Variant)
	if errors.Is(err, deck.ErrUnknownVariant) {
		return nil, fmt.Errorf("%w (available: %v)", err, deck.Variants())
	}
	return d, err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	var cert *tls.Certificate
	if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
		c, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS cert/key: %w", err)
		}
		cert = &c
	}

	store, err := backend.OpenStorage(cfg.Storage.DataDir, os.Getenv(backend.MasterKeyEnv), cfg.Storage.Compression, logger)
	if err != nil {
		return err
	}

	d, err := loadDeck(cfg)
	if err != nil {
		return err
	}
	decks := deck.NewStore(d, logger.Named("deck"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Deck.Watch && cfg.Deck.File != "" {
		go func() {
			if err := decks.Watch(ctx, cfg.Deck.File); err != nil {
				logger.Error("Deck watcher stopped", zap.Error(err))
			}
		}()
	}

	opts := backend.OptionsFromConfig(cfg)
	opts.Cert = cert
	opts.Debug = debugMode
	opts.Logger = logger
	opts.Decks = decks
	opts.Storage = store

	server, err := backend.StartServer(opts)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("Serving deck",
		zap.String("variant", d.Variant),
		zap.Stringer("addr", server.Addr()),
		zap.String("base_url", opts.BaseURL))

	<-ctx.Done()

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		return err
	}
	logger.Info("Gracefully stopped.")
	return nil
}

// runExport starts a private server, asks it for the PDF, and saves it.
func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := loadDeck(cfg)
	if err != nil {
		return err
	}

	opts := backend.OptionsFromConfig(cfg)
	opts.Addr = exportAddr
	// Only an explicit base URL applies; otherwise the listener's address is used.
	opts.BaseURL = cfg.Server.BaseURL
	opts.ExportRatePerMinute = 0
	opts.Metrics = false
	opts.Logger = logger
	opts.Decks = deck.NewStore(d, logger.Named("deck"))

	server, err := backend.StartServer(opts)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.ExportTimeout+10*time.Second)
	defer cancel()

	url := "http://" + server.Addr().String() + "/api/export-pdf"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("export: %s: %s", resp.Status, body)
	}

	out := exportOut
	if out == "" {
		out = d.ExportName
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return err
	}
	pages, err := pdfexport.CountPages(body)
	if err != nil {
		logger.Warn("Counting pages", zap.Error(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d bytes, %d pages, %d slides expected, %s\n",
		out, len(body), pages, d.SlideCount(), time.Since(start).Round(time.Millisecond))
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := loadDeck(cfg)
	if err != nil {
		return err
	}
	var programOpts []tea.ProgramOption
	if !previewOnce {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	programOpts = append(programOpts, tea.WithContext(cmd.Context()))
	_, err = tea.NewProgram(preview.NewModel(d, preview.Options{Once: previewOnce}), programOpts...).Run()
	return err
}
