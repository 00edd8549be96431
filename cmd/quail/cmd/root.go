package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/config"
)

var (
	cfgFile   string
	serverURL string
	username  string
	password  string
	verbose   bool
	cfg       *config.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quail",
	Short: "Terminal chat client",
	Long: `quail is a terminal client for the quail chat backend.

It keeps per-conversation read positions locally, polls the backend for
new messages, and shows unread counters for every friend and group you
are not currently looking at.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverURL != "" {
			cfg.Server.URL = serverURL
		}
		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.Data.DataDir, err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.quail/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "username (prompted when omitted)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "password (prompted when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(friendsCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(devserverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// newClient creates an API client from the loaded config.
func newClient() (*api.Client, error) {
	client, err := api.New(api.Config{
		URL:     cfg.Server.URL,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// login authenticates against the backend, prompting for any credential
// not supplied via flags, and returns the client plus the logged-in user.
func login(ctx context.Context) (*api.Client, api.User, error) {
	client, err := newClient()
	if err != nil {
		return nil, api.User{}, err
	}
	if err := promptCredentials(); err != nil {
		return nil, api.User{}, err
	}
	user, err := client.Login(ctx, username, password)
	if err != nil {
		return nil, api.User{}, fmt.Errorf("login: %w", err)
	}
	return client, *user, nil
}
