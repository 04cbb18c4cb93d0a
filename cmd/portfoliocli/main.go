// Command portfoliocli runs content maintenance against the portfolio database
// without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/folio-works/portfolio-api/internal/app"
	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	// newApp is replaced in tests
	newApp = loadApp
)

var rootCmd = &cobra.Command{
	Use:   "portfoliocli",
	Short: "Maintain and publish portfolio content",
	Long: `portfoliocli works directly on the content database configured for the API
(config.json, .env and environment variables).

Available commands:
  sync           - Upload pending images and publish data.json to GitHub
  status         - Show pending changes and the last sync runs
  export         - Print the current site data
  pull           - Import the deployed data.json
  migrate-images - Upload data URLs left in stored documents
  repair-refs    - Clear references to images that no longer exist
  history        - List or restore published versions`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(syncCmd, statusCmd, exportCmd, pullCmd, migrateImagesCmd, repairRefsCmd, historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadWithSecrets(ctx, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to stderr so command output can be piped
	logCfg := cfg.Logging
	logCfg.Format = "console"
	if verbose {
		logCfg.Level = "debug"
	} else {
		logCfg.Level = "warn"
	}
	log, err := logger.NewLogger(&logCfg, &cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return app.New(cfg, log)
}

// withApp runs fn with a freshly wired App and closes it afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.Logger.Warn("failed to close database", zap.Error(cerr))
		}
		_ = a.Logger.Sync()
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
