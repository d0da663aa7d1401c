package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/internal/config"
	"github.com/fastygo/groupbuy/pkg/logger"
)

var (
	// Global flags
	remoteURL   string
	cacheDriver string
	timeout     time.Duration
	verbose     bool
	jsonOutput  bool

	cfg       *config.Config
	appLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "campaignctl",
	Short: "Coordinate group-buying campaigns from the terminal",
	Long: `campaignctl manages group-buying campaigns against the campaign API.

Reads prefer the remote store and fall back to the local cache. Writes are
applied to the local cache first and settled with the remote store in the
background; writes that cannot reach the remote are kept in the outbox and
replayed by "campaignctl sync" or "campaignctl watch".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("remote") {
			loaded.Remote.URL = remoteURL
		}
		if cmd.Flags().Changed("cache") {
			loaded.Cache.Driver = cacheDriver
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("timeout") {
			loaded.Remote.Timeout = timeout
		}
		cfg = loaded

		level := "warn"
		if verbose {
			level = "debug"
		}
		appLogger, err = logger.New(logger.Config{Level: level, Encoding: "console", Output: "stderr"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "campaign API base URL (overrides REMOTE_URL)")
	rootCmd.PersistentFlags().StringVar(&cacheDriver, "cache", "", "local cache driver: bolt or redis (overrides CACHE_DRIVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "remote call timeout (overrides REMOTE_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		listCmd,
		getCmd,
		createCmd,
		updateCmd,
		duplicateCmd,
		statusCmd,
		removeCmd,
		joinCmd,
		watchCmd,
		syncCmd,
		eventsCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
