package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "coldb",
		Short: "columnar in-memory document store",
		Long: fmt.Sprintf(`coldb (v%s)

Operator tooling for coldb stores: inspect persisted document types,
compact them offline and run synthetic workloads.

Every flag can also be set through the environment, e.g. COLDB_DIR or
COLDB_MEMORY_LIMIT. .env and .env.local are read on startup.`, Version),
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of coldb",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coldb v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(benchCmd)

	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("compression", "zstd", "codec of written files (none, zstd, lz4, snappy, gzip)")
	rootCmd.PersistentFlags().Int64("memory-limit", 0, "memory budget in bytes, 0 for unlimited")
	rootCmd.PersistentFlags().Int64("io-limit", 0, "flush and load throughput in bytes per second, 0 for unlimited")
}

// initConfig loads env files and wires viper to the COLDB_ environment.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("coldb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the local and inherited flags of cmd to viper.
func bindFlags(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
