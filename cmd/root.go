// Package cmd defines and implements the CLI commands for the camera-pdf-scraper executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/app"
	"github.com/dj-urg/camera-pdf-scraper/internal/config"
	"github.com/dj-urg/camera-pdf-scraper/internal/session"
	"github.com/dj-urg/camera-pdf-scraper/internal/storage/local"
	pkgconfig "github.com/dj-urg/camera-pdf-scraper/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// annotationNeedsApp marks commands that require the app services.
const annotationNeedsApp = "needs-app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	GetConfig() *config.Config
	GetLogger() *zap.Logger
	GetStore() *local.BlobStore
	GetSession() *session.Session
	RunID() string
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.NewApp(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	var debug bool

	cmd := &cobra.Command{
		Use:   "camera-pdf-scraper",
		Short: "Downloads commission bulletin PDFs from camera.it.",
		Long: `camera-pdf-scraper walks the monthly listing pages of a Chamber of
Deputies commission, finds every "Scarica PDF" link and stores each PDF
under a deterministic, date-based name. Files already on disk are never
downloaded again, so a run can be repeated safely.`,
		SilenceUsage: true,

		// Load configuration, apply flag overrides, then build the app and
		// hand it to the subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNeedsApp] != "true" {
				return nil
			}
			path := cfgFile
			if path == "" {
				path = pkgconfig.DiscoveredFile()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("debug") {
				cfg.Logging.Debug = debug
			}
			if err := applyScrapeFlags(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(pkgconfig.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scraper.yaml if present)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// cobra has already printed the error.
		os.Exit(1)
	}
}
