package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/s0up4200/mircrew/config"
	"github.com/s0up4200/mircrew/mircrew"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	client  *mircrew.Client

	// Command flags
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mircrew",
	Short: "Search MirCrew Releases and reveal magnet links",
	Long: `mircrew is a CLI and JSON server for the MirCrew Releases forum. It logs in
with your forum account, searches topic titles, extracts release details and
reveals magnet links that are only shown after liking a post.

Credentials are read from MIRCREW_USERNAME and MIRCREW_PASSWORD.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(magnetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeApp initializes the configuration and the forum client
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	if cfg.MirCrew.MaxRetries > 0 {
		logger.Debug().Int("max_retries", cfg.MirCrew.MaxRetries).Msg("Retry count configured; requests are not retried automatically")
	}

	opts := []mircrew.Option{
		mircrew.WithBaseURL(cfg.MirCrew.BaseURL),
		mircrew.WithTimeout(cfg.MirCrew.Timeout),
		mircrew.WithCookiePrefix(cfg.MirCrew.CookiePrefix),
	}
	if len(cfg.MirCrew.LikeEndpoints) > 0 {
		opts = append(opts, mircrew.WithLikeEndpoints(cfg.MirCrew.LikeEndpoints...))
	}

	// Create forum client
	credentials := mircrew.Credentials{Username: cfg.MirCrew.Username, Password: cfg.MirCrew.Password}
	client, err = mircrew.NewClient(credentials, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create MirCrew client: %w", err)
	}

	logger.Debug().Str("base_url", client.BaseURL()).Dur("timeout", cfg.MirCrew.Timeout).Msg("MirCrew client ready")

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	var output io.Writer = os.Stderr
	if cfg.Format != "json" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
		}
	}

	// Optional rotated log file, always JSON
	if cfg.File != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
