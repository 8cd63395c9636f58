package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartrestaurant/gateway/internal/config"
)

var (
	cfg        *config.Config
	configFile string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Smart Restaurant API gateway",
	Long: `Smart Restaurant API gateway signs users in against an OpenID Connect provider,
resolves their authorities, enforces the route authorization table and forwards
requests to the orders, users and menu services.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		slog.SetDefault(newLogger(cfg.Debug, logFormat))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format: text or json")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: GATEWAY_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: GATEWAY_DEBUG)")
	rootCmd.PersistentFlags().String("table", "", "Route and authorization table YAML (env: GATEWAY_GATEWAY_TABLE_FILE)")

	_ = viper.BindPFlag("server_addr", rootCmd.PersistentFlags().Lookup("server-addr"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("gateway.table_file", rootCmd.PersistentFlags().Lookup("table"))
}

func newLogger(debug bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
